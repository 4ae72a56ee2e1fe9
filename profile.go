package seravault

import (
	"bytes"
	"context"
	"sync"
)

// MemoryProfile is a Profile held in memory. It suits tests, tools and
// callers that load the account record themselves.
type MemoryProfile struct {
	mu        sync.RWMutex
	envelope  Envelope
	publicKey []byte
	saves     int
}

// NewMemoryProfile creates a profile from an envelope and the account
// public key.
func NewMemoryProfile(env Envelope, publicKey []byte) *MemoryProfile {
	return &MemoryProfile{envelope: env, publicKey: bytes.Clone(publicKey)}
}

// Envelope implements Profile.
func (p *MemoryProfile) Envelope(ctx context.Context) (Envelope, error) {
	if err := ctx.Err(); err != nil {
		return Envelope{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.envelope, nil
}

// PublicKey implements Profile.
func (p *MemoryProfile) PublicKey(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return bytes.Clone(p.publicKey), nil
}

// SaveEnvelope implements Profile.
func (p *MemoryProfile) SaveEnvelope(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelope = env
	p.saves++
	return nil
}

// Saves returns how many times SaveEnvelope succeeded.
func (p *MemoryProfile) Saves() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.saves
}
