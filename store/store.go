// Package store persists encrypted objects by storage path.
//
// Backends only ever see ciphertext: an EncryptedObject's body, metadata and
// key-wrap entries are stored as the JSON produced by its MarshalJSON.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	seravault "github.com/seravault/client-go"
)

var (
	// ErrNotFound is returned when no object exists at a storage path.
	ErrNotFound = errors.New("object not found")

	// ErrCorrupt is returned when a stored object cannot be decoded.
	ErrCorrupt = errors.New("stored object is corrupt")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")
)

// Store maps storage paths to encrypted objects.
type Store interface {
	Put(ctx context.Context, obj *seravault.EncryptedObject) error
	Get(ctx context.Context, storagePath string) (*seravault.EncryptedObject, error)
	Delete(ctx context.Context, storagePath string) error
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Open builds the backend named by cfg.Backend.
func Open(cfg seravault.StorageConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "", seravault.StorageMemory:
		return NewMemory(), nil
	case seravault.StorageFile:
		return NewFile(cfg.Dir, logger)
	case seravault.StorageRedis:
		return NewRedis(RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", seravault.ErrInvalidConfig, cfg.Backend)
	}
}

func encode(obj *seravault.EncryptedObject) ([]byte, error) {
	if obj == nil || obj.StoragePath == "" {
		return nil, errors.New("object has no storage path")
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", obj.StoragePath, err)
	}
	return data, nil
}

func decode(storagePath string, data []byte) (*seravault.EncryptedObject, error) {
	var obj seravault.EncryptedObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, storagePath, err)
	}
	return &obj, nil
}
