package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFile(t *testing.T) {
	s, err := NewFile(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, s)
}

func TestFile_CorruptObject(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFile(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Put(ctx, testObject("p")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.path("p"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, "p"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestFile_IgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFile(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "!!.json"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, testObject("p")); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0] != "p" {
		t.Errorf("List() = %v, want [p]", list)
	}
}

func TestNewFile_RequiresDir(t *testing.T) {
	if _, err := NewFile("", nil); err == nil {
		t.Error("NewFile(\"\") should fail")
	}
}
