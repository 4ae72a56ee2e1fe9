package seravault

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// DefaultSlot is the slot the unlocked account private key lives in.
const DefaultSlot = "privateKey"

// SessionInfo describes a live session without exposing its key.
type SessionInfo struct {
	Slot         string
	CreatedAt    time.Time
	LastActivity time.Time
	Timeout      time.Duration
	Deadline     time.Time
}

type session struct {
	key          *SecretBytes
	createdAt    time.Time
	lastActivity time.Time
	timeout      time.Duration
	deadline     time.Time
	timer        *clock.Timer
	gen          uint64
}

// SessionStore keeps decrypted key material in process memory only, one
// session per named slot, and wipes each session after a period without
// activity.
//
// Every teardown (timeout, Lock, Shutdown) runs under the store's lock, so a
// session is wiped at most once and timeout callbacks see at most one event
// for it. Callbacks run after the lock is released and may call back into
// the store.
type SessionStore struct {
	mu         sync.Mutex
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *Metrics
	timeout    time.Duration
	grace      time.Duration
	sessions   map[string]*session
	background bool
	closed     bool
	nextGen    uint64
	subs       *subscriptionManager
}

// NewSessionStore creates an empty store.
func NewSessionStore(opts ...Option) *SessionStore {
	return newSessionStore(newConfig(opts))
}

func newSessionStore(cfg *config) *SessionStore {
	return &SessionStore{
		clock:    cfg.clock,
		logger:   cfg.logger.Named("session"),
		metrics:  cfg.metrics,
		timeout:  cfg.sessionTimeout,
		grace:    cfg.backgroundGrace,
		sessions: make(map[string]*session),
		subs:     newSubscriptionManager(),
	}
}

// Put stores key in slot and takes ownership of it. A non-positive timeout
// uses the store default. Any previous session in slot is wiped first
// without notifying timeout callbacks.
func (st *SessionStore) Put(slot string, key *SecretBytes, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = st.timeout
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		key.Destroy()
		return ErrStoreClosed
	}

	if old, ok := st.sessions[slot]; ok {
		st.teardownLocked(slot, old, "replaced")
	}

	now := st.clock.Now()
	s := &session{
		key:          key,
		createdAt:    now,
		lastActivity: now,
		timeout:      timeout,
	}
	st.sessions[slot] = s
	st.armLocked(slot, s, st.window(s))
	st.metrics.SessionsActive.Set(float64(len(st.sessions)))

	st.logger.Debug("session started",
		zap.String("slot", slot),
		zap.Duration("timeout", timeout),
	)
	return nil
}

// Acquire returns a copy of the key in slot and resets its timer. The copy
// is owned by the caller and survives a later teardown of the session.
func (st *SessionStore) Acquire(slot string) (*SecretBytes, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, err := st.liveLocked(slot)
	if err != nil {
		return nil, err
	}
	st.touchLocked(slot, s)
	return s.key.Clone(), nil
}

// Use calls fn with the key in slot and resets its timer. The session
// cannot be torn down while fn runs; fn must not retain the slice or call
// back into the store.
func (st *SessionStore) Use(slot string, fn func(key []byte) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, err := st.liveLocked(slot)
	if err != nil {
		return err
	}
	st.touchLocked(slot, s)
	return s.key.Use(fn)
}

// Touch records user activity on slot, restarting its full timeout.
func (st *SessionStore) Touch(slot string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, err := st.liveLocked(slot)
	if err != nil {
		return err
	}
	st.touchLocked(slot, s)
	return nil
}

// Has reports whether slot holds a live session.
func (st *SessionStore) Has(slot string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[slot]
	return ok
}

// Info describes the session in slot.
func (st *SessionStore) Info(slot string) (SessionInfo, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[slot]
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{
		Slot:         slot,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
		Timeout:      s.timeout,
		Deadline:     s.deadline,
	}, true
}

// Slots returns the names of all live sessions, sorted.
func (st *SessionStore) Slots() []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	slots := make([]string, 0, len(st.sessions))
	for slot := range st.sessions {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}

// Lock wipes the session in slot and notifies timeout callbacks. It reports
// whether a session was present; locking an empty slot does nothing.
func (st *SessionStore) Lock(slot string) bool {
	st.mu.Lock()
	s, ok := st.sessions[slot]
	if ok {
		st.teardownLocked(slot, s, ReasonLocked)
	}
	st.mu.Unlock()

	if ok {
		st.subs.notify(TimeoutEvent{Slot: slot, Reason: ReasonLocked, At: st.clock.Now()})
	}
	return ok
}

// SetBackground records whether the process is backgrounded. Going to the
// background shortens every timer to the grace period if it would
// otherwise fire later; returning to the foreground restarts every timer at
// its full timeout.
func (st *SessionStore) SetBackground(background bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.background == background {
		return
	}
	st.background = background

	now := st.clock.Now()
	for slot, s := range st.sessions {
		if background {
			if s.deadline.Sub(now) > st.grace {
				st.armLocked(slot, s, st.grace)
			}
			continue
		}
		st.armLocked(slot, s, s.timeout)
	}
	st.logger.Debug("visibility changed", zap.Bool("background", background))
}

// OnTimeout registers callback to be told about every ended session.
// Each ended session produces exactly one event.
func (st *SessionStore) OnTimeout(callback func(TimeoutEvent)) Subscription {
	return st.subs.subscribe(callback)
}

// RemoveTimeoutCallback unregisters a callback. Events raised after it
// returns are not delivered; a delivery already in progress on another
// goroutine may still complete. A callback may remove itself.
func (st *SessionStore) RemoveTimeoutCallback(sub Subscription) {
	st.subs.unsubscribe(sub)
}

// Shutdown wipes every session, notifies callbacks with ReasonShutdown,
// then drops all callbacks. Later calls to Put fail with ErrStoreClosed.
func (st *SessionStore) Shutdown() {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	st.closed = true

	now := st.clock.Now()
	events := make([]TimeoutEvent, 0, len(st.sessions))
	for slot, s := range st.sessions {
		st.teardownLocked(slot, s, ReasonShutdown)
		events = append(events, TimeoutEvent{Slot: slot, Reason: ReasonShutdown, At: now})
	}
	st.mu.Unlock()

	for _, ev := range events {
		st.subs.notify(ev)
	}
	st.subs.clear()
}

func (st *SessionStore) liveLocked(slot string) (*session, error) {
	if st.closed {
		return nil, ErrStoreClosed
	}
	s, ok := st.sessions[slot]
	if !ok {
		return nil, ErrLocked
	}
	return s, nil
}

// window is the timer length for a fresh or touched session.
func (st *SessionStore) window(s *session) time.Duration {
	if st.background && st.grace < s.timeout {
		return st.grace
	}
	return s.timeout
}

func (st *SessionStore) touchLocked(slot string, s *session) {
	s.lastActivity = st.clock.Now()
	st.armLocked(slot, s, st.window(s))
}

// armLocked replaces the session's timer. The generation guards against a
// stopped timer whose callback was already running.
func (st *SessionStore) armLocked(slot string, s *session, d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	st.nextGen++
	gen := st.nextGen
	s.gen = gen
	s.deadline = st.clock.Now().Add(d)
	s.timer = st.clock.AfterFunc(d, func() {
		st.expire(slot, gen)
	})
}

func (st *SessionStore) expire(slot string, gen uint64) {
	st.mu.Lock()
	s, ok := st.sessions[slot]
	if !ok || s.gen != gen {
		st.mu.Unlock()
		return
	}
	st.teardownLocked(slot, s, ReasonTimeout)
	st.mu.Unlock()

	st.logger.Info("session timed out", zap.String("slot", slot))
	st.subs.notify(TimeoutEvent{Slot: slot, Reason: ReasonTimeout, At: st.clock.Now()})
}

func (st *SessionStore) teardownLocked(slot string, s *session, reason TeardownReason) {
	if s.timer != nil {
		s.timer.Stop()
	}
	delete(st.sessions, slot)
	s.key.Destroy()
	st.metrics.SessionTeardowns.WithLabelValues(string(reason)).Inc()
	st.metrics.SessionsActive.Set(float64(len(st.sessions)))
}
