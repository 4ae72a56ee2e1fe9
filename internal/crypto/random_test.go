package crypto

import (
	"bytes"
	"errors"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestRandomBytes(t *testing.T) {
	a, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes() error = %v", err)
	}
	b, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes() error = %v", err)
	}
	if len(a) != 32 || bytes.Equal(a, b) {
		t.Error("RandomBytes() should return distinct 32-byte values")
	}
}

func TestRandomBytes_SourceFailure(t *testing.T) {
	restore := SetRandReaderForTesting(failingReader{})
	defer restore()

	if _, err := RandomBytes(16); err == nil {
		t.Error("RandomBytes() should fail when the source fails")
	}
	if _, err := NewContentKey(); err == nil {
		t.Error("NewContentKey() should fail when the source fails")
	}
}

func TestSetRandReaderForTesting_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 64)

	restore := SetRandReaderForTesting(bytes.NewReader(seed))
	k1, err := NewContentKey()
	restore()
	if err != nil {
		t.Fatal(err)
	}

	restore = SetRandReaderForTesting(bytes.NewReader(seed))
	k2, err := NewContentKey()
	restore()
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(k1, k2) || len(k1) != ContentKeySize {
		t.Error("same source should yield the same content key")
	}
}
