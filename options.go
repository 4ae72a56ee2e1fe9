package seravault

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/seravault/client-go/internal/crypto"
)

const (
	// DefaultSessionTimeout is how long an unlocked key survives without activity.
	DefaultSessionTimeout = 15 * time.Minute
	// DefaultBackgroundGrace is the shortened timeout applied while the
	// process is backgrounded.
	DefaultBackgroundGrace = 5 * time.Minute

	defaultUnlockPerMinute = 10
	defaultUnlockBurst     = 5
)

// config holds settings shared by every component built from options.
type config struct {
	logger          *zap.Logger
	metrics         *Metrics
	clock           clock.Clock
	sessionTimeout  time.Duration
	backgroundGrace time.Duration
	kdf             KDFParams
	unlockLimit     rate.Limit
	unlockBurst     int
	newStoragePath  func() string
}

// Option configures an Engine, SessionStore, Custody or Vault.
type Option func(*config)

func newConfig(opts []Option) *config {
	cfg := &config{
		logger:          zap.NewNop(),
		clock:           clock.New(),
		sessionTimeout:  DefaultSessionTimeout,
		backgroundGrace: DefaultBackgroundGrace,
		kdf:             DefaultKDFParams(),
		unlockLimit:     rate.Limit(float64(defaultUnlockPerMinute) / 60),
		unlockBurst:     defaultUnlockBurst,
		newStoragePath:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = NewMetrics(nil)
	}
	return cfg
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the collectors to record into.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithClock replaces the wall clock used for session timers.
func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithSessionTimeout sets the inactivity timeout for unlocked keys.
// Default: 15 minutes
func WithSessionTimeout(d time.Duration) Option {
	return func(c *config) {
		c.sessionTimeout = d
	}
}

// WithBackgroundGrace sets the timeout applied while backgrounded.
// Default: 5 minutes
func WithBackgroundGrace(d time.Duration) Option {
	return func(c *config) {
		c.backgroundGrace = d
	}
}

// WithKDFParams sets the Argon2id parameters used for new envelopes.
func WithKDFParams(p KDFParams) Option {
	return func(c *config) {
		c.kdf = p
	}
}

// WithUnlockRate limits unlock attempts to perMinute, allowing burst
// attempts back to back. A non-positive perMinute disables the limit.
func WithUnlockRate(perMinute float64, burst int) Option {
	return func(c *config) {
		if perMinute <= 0 {
			c.unlockLimit = rate.Inf
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.unlockLimit = rate.Limit(perMinute / 60)
		c.unlockBurst = burst
	}
}

// WithStoragePathFunc overrides how storage paths for new objects are chosen.
// Default: a random UUID.
func WithStoragePathFunc(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.newStoragePath = fn
		}
	}
}

// DefaultKDFParams returns the Argon2id parameters used for new envelopes.
func DefaultKDFParams() KDFParams {
	p := crypto.DefaultArgon2Params()
	return KDFParams{
		Algorithm: crypto.KDFArgon2id,
		Time:      p.Time,
		MemoryKB:  p.MemoryKB,
		Threads:   p.Threads,
	}
}
