package seravault

import (
	"testing"

	"github.com/seravault/client-go/internal/crypto"
)

// testKDF keeps Argon2id cheap enough for unit tests.
var testKDF = KDFParams{
	Algorithm: crypto.KDFArgon2id,
	Time:      1,
	MemoryKB:  crypto.MinArgonMemoryKB,
	Threads:   1,
}

func newTestKeypair(t *testing.T) *crypto.Keypair {
	t.Helper()
	kp, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error = %v", err)
	}
	return kp
}

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithKDFParams(testKDF)}, opts...)...)
}

// secretCopy returns a fresh copy of b; Unlock and NewSecretBytes wipe
// their inputs.
func secretCopy(b []byte) []byte {
	return append([]byte(nil), b...)
}
