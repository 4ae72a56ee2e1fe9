package seravault

import (
	"bytes"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/seravault/client-go/internal/crypto"
)

// ParseKeyFile reads an exported private-key file: either the raw 2400-byte
// ML-KEM-768 secret key or that key as base64 text in any alphabet. data is
// wiped before returning.
func ParseKeyFile(data []byte) (*SecretBytes, error) {
	defer memguard.WipeBytes(data)

	if len(data) == crypto.MLKEMSecretKeySize {
		return newValidatedKey(bytes.Clone(data))
	}

	decoded, err := crypto.DecodeBase64(string(bytes.TrimSpace(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: key file is neither raw nor base64", crypto.ErrInvalidPayload)
	}
	return newValidatedKey(decoded)
}

func newValidatedKey(key []byte) (*SecretBytes, error) {
	if err := crypto.ValidateSecretKey(key); err != nil {
		memguard.WipeBytes(key)
		return nil, err
	}
	return NewSecretBytes(key), nil
}
