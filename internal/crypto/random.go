package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// randReader overrides crypto/rand for key generation, nonces, salts and
// content keys when non-nil.
var randReader io.Reader

func entropy() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

// SetRandReaderForTesting swaps the package random source and returns a
// function restoring the previous one. Tests using it must not run in parallel.
func SetRandReaderForTesting(r io.Reader) func() {
	original := randReader
	randReader = r
	return func() { randReader = original }
}

// RandomBytes returns n bytes from the package random source.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(entropy(), b); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return b, nil
}

// NewContentKey returns a fresh random per-object content key.
func NewContentKey() ([]byte, error) {
	return RandomBytes(ContentKeySize)
}
