package seravault

import (
	"sync"

	"github.com/awnumar/memguard"
)

// SecretBytes holds key material in locked, guard-paged memory.
//
// A SecretBytes owns its memory: Destroy wipes it, and every method is safe
// to call after Destroy. Values must be passed by pointer; copying one is a
// vet error.
type SecretBytes struct {
	mu sync.RWMutex
	lb *memguard.LockedBuffer
}

// NewSecretBytes moves src into protected memory and wipes src.
func NewSecretBytes(src []byte) *SecretBytes {
	return &SecretBytes{lb: memguard.NewBufferFromBytes(src)}
}

// Use calls fn with a view of the bytes. The view is valid only until fn
// returns and must not be retained or modified.
func (s *SecretBytes) Use(fn func([]byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lb == nil || !s.lb.IsAlive() {
		return ErrLocked
	}
	return fn(s.lb.Bytes())
}

// Clone returns an independently owned copy.
func (s *SecretBytes) Clone() *SecretBytes {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lb == nil || !s.lb.IsAlive() {
		return &SecretBytes{}
	}
	b := memguard.NewBuffer(s.lb.Size())
	b.Copy(s.lb.Bytes())
	b.Freeze()
	return &SecretBytes{lb: b}
}

// Len returns the number of bytes held, or zero once destroyed.
func (s *SecretBytes) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lb == nil || !s.lb.IsAlive() {
		return 0
	}
	return s.lb.Size()
}

// Alive reports whether the bytes are still present.
func (s *SecretBytes) Alive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lb != nil && s.lb.IsAlive()
}

// Destroy wipes and releases the memory. Calling it more than once is a no-op.
func (s *SecretBytes) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lb != nil {
		s.lb.Destroy()
	}
}
