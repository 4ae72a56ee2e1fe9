package store

import (
	"context"
	"sort"
	"sync"

	seravault "github.com/seravault/client-go"
)

// Memory is a Store held in process memory. Objects are kept encoded, so
// callers never share an *EncryptedObject with the store.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	closed  bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, obj *seravault.EncryptedObject) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(obj)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.objects[obj.StoragePath] = data
	return nil
}

func (m *Memory) Get(ctx context.Context, storagePath string) (*seravault.EncryptedObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, ok := m.objects[storagePath]
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, ErrNotFound
	}
	return decode(storagePath, data)
}

func (m *Memory) Delete(ctx context.Context, storagePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.objects[storagePath]; !ok {
		return ErrNotFound
	}
	delete(m.objects, storagePath)
	return nil
}

func (m *Memory) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	paths := make([]string, 0, len(m.objects))
	for p := range m.objects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.objects = nil
	return nil
}
