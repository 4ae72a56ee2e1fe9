package crypto

import (
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/nacl/secretbox"
)

// SealLegacy produces a legacy private-key envelope: the standard base64
// encoding of salt (16) || nonce (24) || secretbox(plaintext).
//
// New envelopes are never written in this format outside of tests and
// fixtures; it exists so existing accounts keep working.
func SealLegacy(passphrase, plaintext []byte) (string, error) {
	salt, err := RandomBytes(SaltSize)
	if err != nil {
		return "", err
	}
	nonceBytes, err := RandomBytes(LegacyNonceSize)
	if err != nil {
		return "", err
	}

	key := DerivePBKDF2Key(passphrase, salt)
	defer memguard.WipeBytes(key)

	var k [32]byte
	var nonce [LegacyNonceSize]byte
	copy(k[:], key)
	copy(nonce[:], nonceBytes)
	defer memguard.WipeBytes(k[:])

	out := make([]byte, 0, SaltSize+LegacyNonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, plaintext, &nonce, &k)

	return ToBase64(out), nil
}

// OpenLegacy decrypts an envelope produced by SealLegacy.
func OpenLegacy(passphrase []byte, encoded string) ([]byte, error) {
	raw, err := DecodeBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: legacy envelope encoding", ErrInvalidPayload)
	}
	if len(raw) < SaltSize+LegacyNonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: legacy envelope too short", ErrInvalidCiphertextSize)
	}

	salt := raw[:SaltSize]
	var nonce [LegacyNonceSize]byte
	copy(nonce[:], raw[SaltSize:SaltSize+LegacyNonceSize])
	box := raw[SaltSize+LegacyNonceSize:]

	key := DerivePBKDF2Key(passphrase, salt)
	defer memguard.WipeBytes(key)

	var k [32]byte
	copy(k[:], key)
	defer memguard.WipeBytes(k[:])

	plaintext, ok := secretbox.Open(nil, box, &nonce, &k)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
