package crypto

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Bounds accepted for stored Argon2id parameters. Envelopes carrying
// weaker parameters are rejected rather than opened, and so are envelopes
// whose cost would exhaust memory or stall the unlock.
const (
	MinArgonTime     = uint32(1)
	MinArgonMemoryKB = uint32(8 * 1024)
	MinArgonThreads  = uint8(1)

	MaxArgonTime     = uint32(16)
	MaxArgonMemoryKB = uint32(1024 * 1024)
	MaxArgonThreads  = uint8(16)
)

// Argon2Params are the Argon2id cost parameters stored with an envelope.
type Argon2Params struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

// DefaultArgon2Params returns the parameters used for new envelopes.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:     DefaultArgonTime,
		MemoryKB: DefaultArgonMemoryKB,
		Threads:  DefaultArgonThreads,
	}
}

// Validate rejects parameters outside the accepted bounds.
func (p Argon2Params) Validate() error {
	if p.Time < MinArgonTime || p.MemoryKB < MinArgonMemoryKB || p.Threads < MinArgonThreads ||
		p.Time > MaxArgonTime || p.MemoryKB > MaxArgonMemoryKB || p.Threads > MaxArgonThreads {
		return fmt.Errorf("%w: time=%d memory=%dKiB threads=%d", ErrInvalidKDFParams, p.Time, p.MemoryKB, p.Threads)
	}
	return nil
}

// DeriveArgon2Key derives an AES-256 key from passphrase and salt.
func DeriveArgon2Key(passphrase, salt []byte, p Argon2Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt is %d bytes, want %d", ErrInvalidSize, len(salt), SaltSize)
	}
	return argon2.IDKey(passphrase, salt, p.Time, p.MemoryKB, p.Threads, AESKeySize), nil
}

// DerivePBKDF2Key derives the legacy envelope key.
func DerivePBKDF2Key(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, LegacyPBKDF2Iterations, AESKeySize, sha256.New)
}
