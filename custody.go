package seravault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/seravault/client-go/internal/crypto"
)

// State is the custody state of an account's private key.
type State int

const (
	// StateLocked means no decrypted key is held.
	StateLocked State = iota
	// StateUnlocking means an unlock is in flight.
	StateUnlocking
	// StateUnlocked means the key is live in the session store.
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocking:
		return "unlocking"
	case StateUnlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// UnlockMethod names how the caller authenticated.
type UnlockMethod int

const (
	// MethodPassphrase opens the stored envelope with a passphrase.
	MethodPassphrase UnlockMethod = iota
	// MethodBiometric is an external authenticator that released either
	// the private key or the passphrase.
	MethodBiometric
	// MethodHardwareKey is a hardware token that released either the
	// private key or the passphrase.
	MethodHardwareKey
	// MethodKeyFile is an exported private-key file.
	MethodKeyFile
)

func (m UnlockMethod) String() string {
	switch m {
	case MethodPassphrase:
		return "passphrase"
	case MethodBiometric:
		return "biometric"
	case MethodHardwareKey:
		return "hardware-key"
	case MethodKeyFile:
		return "key-file"
	default:
		return fmt.Sprintf("UnlockMethod(%d)", int(m))
	}
}

// Credential carries the input for one unlock attempt. Unlock wipes every
// field before it returns, so callers must not reuse the slices.
type Credential struct {
	Passphrase []byte
	PrivateKey []byte // released by a biometric or hardware authenticator
	KeyFile    []byte
}

func (c Credential) wipe() {
	memguard.WipeBytes(c.Passphrase)
	memguard.WipeBytes(c.PrivateKey)
	memguard.WipeBytes(c.KeyFile)
}

// Profile is the account record custody reads the envelope and public key
// from, and writes migrated envelopes back to.
type Profile interface {
	Envelope(ctx context.Context) (Envelope, error)
	PublicKey(ctx context.Context) ([]byte, error)
	SaveEnvelope(ctx context.Context, env Envelope) error
}

// Custody drives one account's private key between Locked, Unlocking and
// Unlocked. At most one unlock runs at a time; a concurrent attempt fails
// with UnlockInProgressError instead of waiting.
type Custody struct {
	profile Profile
	store   *SessionStore
	engine  *Engine
	limiter *rate.Limiter
	clock   clock.Clock
	logger  *zap.Logger
	metrics *Metrics
	slot    string
	timeout time.Duration
	sub     Subscription

	mu    sync.Mutex
	state State
	epoch uint64 // bumped by Lock so an in-flight unlock can tell it was cancelled

	migrations sync.WaitGroup
}

// NewCustody creates a Custody that keeps the unlocked key in store under
// DefaultSlot.
func NewCustody(profile Profile, store *SessionStore, opts ...Option) *Custody {
	return newCustody(profile, store, newConfig(opts))
}

func newCustody(profile Profile, store *SessionStore, cfg *config) *Custody {
	c := &Custody{
		profile: profile,
		store:   store,
		engine:  newEngine(cfg),
		limiter: rate.NewLimiter(cfg.unlockLimit, cfg.unlockBurst),
		clock:   cfg.clock,
		logger:  cfg.logger.Named("custody"),
		metrics: cfg.metrics,
		slot:    DefaultSlot,
		timeout: cfg.sessionTimeout,
	}
	c.sub = store.OnTimeout(c.sessionEnded)
	if store.Has(c.slot) {
		c.state = StateUnlocked
	}
	return c
}

// State returns the current state.
func (c *Custody) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Unlock recovers the private key with method and cred and places it in
// the session store.
//
// Every credential or envelope failure is reported as an *UnlockError with
// the same message; the cause is only logged at debug level. On failure
// the previous state is kept. A successful passphrase unlock of a legacy
// envelope schedules a background re-seal in the current format.
func (c *Custody) Unlock(ctx context.Context, method UnlockMethod, cred Credential) error {
	defer cred.wipe()

	c.mu.Lock()
	if c.state == StateUnlocking {
		c.mu.Unlock()
		c.recordUnlock(method, "in_progress")
		return &UnlockInProgressError{Method: method}
	}
	if !c.limiter.AllowN(c.clock.Now(), 1) {
		c.mu.Unlock()
		c.recordUnlock(method, "throttled")
		return ErrUnlockThrottled
	}
	c.state = StateUnlocking
	epoch := c.epoch
	c.mu.Unlock()

	key, legacy, err := c.recoverKey(ctx, method, cred)
	if err == nil {
		err = c.checkPublicKey(ctx, key)
	}
	if err != nil {
		key.Destroy()
		c.finishFailed()
		c.recordUnlock(method, "failed")
		c.logger.Debug("unlock failed",
			zap.Stringer("method", method),
			zap.Error(err),
		)
		return &UnlockError{Method: method}
	}

	var migrateKey *SecretBytes
	var migratePass []byte
	if legacy {
		migrateKey = key.Clone()
		migratePass = bytes.Clone(cred.Passphrase)
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.state = StateLocked
		c.mu.Unlock()
		key.Destroy()
		migrateKey.Destroy()
		memguard.WipeBytes(migratePass)
		c.recordUnlock(method, "cancelled")
		return ErrLocked
	}
	if err := c.store.Put(c.slot, key, c.timeout); err != nil {
		c.state = StateLocked
		c.mu.Unlock()
		migrateKey.Destroy()
		memguard.WipeBytes(migratePass)
		c.recordUnlock(method, "failed")
		return fmt.Errorf("store unlocked key: %w", err)
	}
	c.state = StateUnlocked
	c.mu.Unlock()

	c.recordUnlock(method, "ok")
	c.logger.Info("unlocked", zap.Stringer("method", method), zap.Bool("legacy_envelope", legacy))

	if legacy {
		c.migrations.Add(1)
		go c.migrate(context.WithoutCancel(ctx), migrateKey, migratePass)
	}
	return nil
}

// Lock wipes the unlocked key. Locking while already locked does nothing;
// locking during an unlock makes that unlock discard its key.
func (c *Custody) Lock() {
	c.mu.Lock()
	c.epoch++
	if c.state == StateUnlocked {
		c.state = StateLocked
	}
	c.mu.Unlock()

	c.store.Lock(c.slot)
}

// Acquire returns a caller-owned copy of the unlocked key and counts as
// activity on the session.
func (c *Custody) Acquire() (*SecretBytes, error) {
	return c.store.Acquire(c.slot)
}

// WithPrivateKey calls fn with the unlocked key and counts as activity on
// the session. fn must not retain the slice.
func (c *Custody) WithPrivateKey(fn func(privateKey []byte) error) error {
	return c.store.Use(c.slot, fn)
}

// Shutdown locks, waits for pending envelope migrations and detaches from
// the session store.
func (c *Custody) Shutdown() {
	c.Lock()
	c.migrations.Wait()
	c.store.RemoveTimeoutCallback(c.sub)
}

func (c *Custody) recoverKey(ctx context.Context, method UnlockMethod, cred Credential) (*SecretBytes, bool, error) {
	switch method {
	case MethodPassphrase:
		return c.openWithPassphrase(ctx, cred.Passphrase)
	case MethodBiometric, MethodHardwareKey:
		if len(cred.PrivateKey) > 0 {
			key, err := newValidatedKey(bytes.Clone(cred.PrivateKey))
			return key, false, err
		}
		return c.openWithPassphrase(ctx, cred.Passphrase)
	case MethodKeyFile:
		key, err := ParseKeyFile(bytes.Clone(cred.KeyFile))
		return key, false, err
	default:
		return nil, false, fmt.Errorf("unknown unlock method %d", int(method))
	}
}

func (c *Custody) openWithPassphrase(ctx context.Context, passphrase []byte) (*SecretBytes, bool, error) {
	if len(passphrase) == 0 {
		return nil, false, errors.New("empty passphrase")
	}
	env, err := c.profile.Envelope(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load envelope: %w", err)
	}
	key, err := c.engine.OpenEnvelope(env, passphrase)
	if err != nil {
		return nil, false, err
	}
	return key, env.Format() == FormatLegacy, nil
}

// checkPublicKey rejects a key that opened correctly but belongs to a
// different account.
func (c *Custody) checkPublicKey(ctx context.Context, key *SecretBytes) error {
	publicKey, err := c.profile.PublicKey(ctx)
	if err != nil {
		return fmt.Errorf("load public key: %w", err)
	}
	return key.Use(func(sk []byte) error {
		if !crypto.SecretKeyMatches(sk, publicKey) {
			return errors.New("private key does not match account public key")
		}
		return nil
	})
}

func (c *Custody) finishFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store.Has(c.slot) {
		c.state = StateUnlocked
		return
	}
	c.state = StateLocked
}

func (c *Custody) migrate(ctx context.Context, key *SecretBytes, passphrase []byte) {
	defer c.migrations.Done()
	defer key.Destroy()
	defer memguard.WipeBytes(passphrase)

	env, err := c.engine.SealEnvelope(key, passphrase)
	if err != nil {
		c.logger.Warn("envelope migration failed", zap.Error(err))
		return
	}
	if err := c.profile.SaveEnvelope(ctx, env); err != nil {
		c.logger.Warn("envelope migration write-back failed", zap.Error(err))
		return
	}
	c.logger.Info("migrated legacy envelope")
}

func (c *Custody) sessionEnded(ev TimeoutEvent) {
	if ev.Slot != c.slot {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// The event is delivered after the store lock is released, so a newer
	// unlock may already have put a fresh key in the slot.
	if c.state == StateUnlocked && !c.store.Has(c.slot) {
		c.state = StateLocked
	}
}

func (c *Custody) recordUnlock(method UnlockMethod, result string) {
	c.metrics.UnlockAttempts.WithLabelValues(method.String(), result).Inc()
}
