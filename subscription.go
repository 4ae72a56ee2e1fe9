package seravault

import (
	"sync"
	"sync/atomic"
	"time"
)

// TeardownReason says why a session ended.
type TeardownReason string

const (
	// ReasonTimeout means the session saw no activity for its timeout.
	ReasonTimeout TeardownReason = "timeout"
	// ReasonLocked means the session was locked explicitly.
	ReasonLocked TeardownReason = "locked"
	// ReasonShutdown means the store was shut down.
	ReasonShutdown TeardownReason = "shutdown"
)

// TimeoutEvent is delivered to timeout callbacks once per ended session.
type TimeoutEvent struct {
	Slot   string
	Reason TeardownReason
	At     time.Time
}

// Subscription identifies a registered timeout callback.
type Subscription struct {
	id uint64
}

type timeoutSub struct {
	callback func(TimeoutEvent)
	active   atomic.Bool
}

// subscriptionManager holds timeout callbacks. Removal stops delivery of
// later events; it does not wait for a callback that is already running.
type subscriptionManager struct {
	mu     sync.RWMutex
	subs   map[uint64]*timeoutSub
	nextID atomic.Uint64
}

func newSubscriptionManager() *subscriptionManager {
	return &subscriptionManager{
		subs: make(map[uint64]*timeoutSub),
	}
}

func (m *subscriptionManager) subscribe(callback func(TimeoutEvent)) Subscription {
	id := m.nextID.Add(1)

	sub := &timeoutSub{callback: callback}
	sub.active.Store(true)

	m.mu.Lock()
	m.subs[id] = sub
	m.mu.Unlock()

	return Subscription{id: id}
}

// unsubscribe removes a callback. Safe to call multiple times.
func (m *subscriptionManager) unsubscribe(s Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subs[s.id]; ok {
		sub.active.Store(false)
		delete(m.subs, s.id)
	}
}

// notify invokes every callback with ev. Must not be called with the
// session store's lock held.
func (m *subscriptionManager) notify(ev TimeoutEvent) {
	m.mu.RLock()
	if len(m.subs) == 0 {
		m.mu.RUnlock()
		return
	}
	subs := make([]*timeoutSub, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.callback(ev)
		}
	}
}

func (m *subscriptionManager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs {
		sub.active.Store(false)
	}
	m.subs = make(map[uint64]*timeoutSub)
}
