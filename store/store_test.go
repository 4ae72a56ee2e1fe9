package store

import (
	"context"
	"errors"
	"testing"

	seravault "github.com/seravault/client-go"
)

func testObject(path string) *seravault.EncryptedObject {
	return seravault.NewEncryptedObject(path, []byte("ciphertext"), []byte("meta"), map[string][]byte{
		"alice": []byte("wrap-a"),
		"bob":   []byte("wrap-b"),
	})
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing): expected ErrNotFound, got %v", err)
	}

	paths := []string{"objects/b", "objects/a", "weird path/with?chars"}
	for _, p := range paths {
		if err := s.Put(ctx, testObject(p)); err != nil {
			t.Fatalf("Put(%s) error = %v", p, err)
		}
	}

	got, err := s.Get(ctx, "objects/a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.StoragePath != "objects/a" || string(got.Content) != "ciphertext" || string(got.EncryptedMetadata) != "meta" {
		t.Errorf("Get() = %+v", got)
	}
	if r := got.Recipients(); len(r) != 2 || r[0] != "alice" || r[1] != "bob" {
		t.Errorf("Recipients() = %v", r)
	}

	// Overwrite replaces the stored key map.
	updated := seravault.NewEncryptedObject("objects/a", []byte("ciphertext"), []byte("meta"), map[string][]byte{"alice": []byte("wrap-a")})
	if err := s.Put(ctx, updated); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get(ctx, "objects/a")
	if err != nil {
		t.Fatal(err)
	}
	if got.HasRecipient("bob") {
		t.Error("overwrite should drop revoked entries")
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"objects/a", "objects/b", "weird path/with?chars"}
	if len(list) != len(want) {
		t.Fatalf("List() = %v, want %v", list, want)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, list[i], want[i])
		}
	}

	if err := s.Delete(ctx, "objects/b"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "objects/b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete(): expected ErrNotFound, got %v", err)
	}
	if _, err := s.Get(ctx, "objects/b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete: expected ErrNotFound, got %v", err)
	}

	if err := s.Put(ctx, seravault.NewEncryptedObject("", nil, nil, nil)); err == nil {
		t.Error("Put() without a storage path should fail")
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     seravault.StorageConfig
		want    string
		wantErr bool
	}{
		{"default", seravault.StorageConfig{}, "*store.Memory", false},
		{"memory", seravault.StorageConfig{Backend: seravault.StorageMemory}, "*store.Memory", false},
		{"file", seravault.StorageConfig{Backend: seravault.StorageFile, Dir: t.TempDir()}, "*store.File", false},
		{"redis", seravault.StorageConfig{Backend: seravault.StorageRedis, RedisAddr: "localhost:0"}, "*store.Redis", false},
		{"unknown", seravault.StorageConfig{Backend: "tape"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg, nil)
			if tt.wantErr {
				if !errors.Is(err, seravault.ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer s.Close()

			var got string
			switch s.(type) {
			case *Memory:
				got = "*store.Memory"
			case *File:
				got = "*store.File"
			case *Redis:
				got = "*store.Redis"
			}
			if got != tt.want {
				t.Errorf("Open() = %s, want %s", got, tt.want)
			}
		})
	}
}
