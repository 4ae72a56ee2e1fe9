package store

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	seravault "github.com/seravault/client-go"
)

// RetryConfig controls how Fetch retries transient storage failures.
// Cryptographic failures are deterministic and never retried.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// Multiplier grows the delay after each attempt.
	Multiplier float64
	// Jitter is the randomization factor (0.0 to 1.0) applied to delays.
	Jitter float64
	// Retryable decides whether err is worth another attempt.
	Retryable func(err error) bool
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
		Retryable:  IsTransient,
	}
}

// IsTransient reports whether err could succeed on a later attempt. Missing
// or corrupt objects, cancelled contexts and any seravault error are final.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt) || errors.Is(err, ErrClosed) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var sv seravault.SeraVaultError
	return !errors.As(err, &sv)
}

// ShouldRetry reports whether attempt (zero-based) may be followed by another.
func (r *RetryConfig) ShouldRetry(attempt int, err error) bool {
	if attempt >= r.MaxRetries {
		return false
	}
	return r.Retryable(err)
}

// Delay calculates the delay before the next attempt.
func (r *RetryConfig) Delay(attempt int) time.Duration {
	delay := float64(r.BaseDelay) * math.Pow(r.Multiplier, float64(attempt))
	if delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.Jitter > 0 {
		jitterAmount := delay * r.Jitter
		delay = delay - jitterAmount + (rand.Float64() * 2 * jitterAmount)
	}

	return time.Duration(delay)
}

// Wait sleeps for Delay(attempt) or until ctx is done.
func (r *RetryConfig) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(r.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fetch reads storagePath from s, retrying transient failures with
// exponential backoff. A nil cfg uses DefaultRetryConfig.
func Fetch(ctx context.Context, s Store, storagePath string, cfg *RetryConfig) (*seravault.EncryptedObject, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	if cfg.Retryable == nil {
		c := *cfg
		c.Retryable = IsTransient
		cfg = &c
	}

	for attempt := 0; ; attempt++ {
		obj, err := s.Get(ctx, storagePath)
		if err == nil {
			return obj, nil
		}
		if !cfg.ShouldRetry(attempt, err) {
			return nil, err
		}
		if waitErr := cfg.Wait(ctx, attempt); waitErr != nil {
			return nil, err
		}
	}
}
