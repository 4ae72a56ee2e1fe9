package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	seravault "github.com/seravault/client-go"
)

const fileExt = ".json"

// File is a Store that keeps one JSON file per object in a directory.
// File names are the base64url form of the storage path, so any path is
// safe to store.
type File struct {
	dir    string
	logger *zap.Logger
}

// NewFile creates dir if needed and returns a store rooted there.
func NewFile(dir string, logger *zap.Logger) (*File, error) {
	if dir == "" {
		return nil, errors.New("file store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &File{dir: dir, logger: logger.Named("store.file")}, nil
}

func (f *File) path(storagePath string) string {
	return filepath.Join(f.dir, base64.RawURLEncoding.EncodeToString([]byte(storagePath))+fileExt)
}

// Put writes obj through a temporary file and a rename, so readers never
// see a partial object.
func (f *File) Put(ctx context.Context, obj *seravault.EncryptedObject) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(obj)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".put-*")
	if err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("file store: write %s: %w", obj.StoragePath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	if err := os.Rename(tmpName, f.path(obj.StoragePath)); err != nil {
		return fmt.Errorf("file store: %w", err)
	}

	f.logger.Debug("stored object", zap.String("storage_path", obj.StoragePath), zap.Int("bytes", len(data)))
	return nil
}

func (f *File) Get(ctx context.Context, storagePath string) (*seravault.EncryptedObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(storagePath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("file store: %w", err)
	}
	return decode(storagePath, data)
}

func (f *File) Delete(ctx context.Context, storagePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.path(storagePath)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("file store: %w", err)
	}
	return nil
}

func (f *File) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, fileExt))
		if err != nil {
			f.logger.Warn("skipping unrecognized file", zap.String("name", name))
			continue
		}
		paths = append(paths, string(raw))
	}
	sort.Strings(paths)
	return paths, nil
}

// Close is a no-op; File holds no open handles between calls.
func (f *File) Close() error {
	return nil
}
