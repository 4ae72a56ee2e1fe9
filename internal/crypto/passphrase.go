package crypto

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// PassphraseSealed is the output of SealWithPassphrase.
type PassphraseSealed struct {
	Salt       []byte
	Nonce      []byte
	Ciphertext []byte
	Params     Argon2Params
}

// SealWithPassphrase seals plaintext under an Argon2id key derived from
// passphrase and a fresh salt.
func SealWithPassphrase(passphrase, plaintext []byte, p Argon2Params) (*PassphraseSealed, error) {
	salt, err := RandomBytes(SaltSize)
	if err != nil {
		return nil, err
	}

	key, err := DeriveArgon2Key(passphrase, salt, p)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(key)

	nonce, ciphertext, err := SealAES(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}

	return &PassphraseSealed{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ciphertext,
		Params:     p,
	}, nil
}

// OpenWithPassphrase reverses SealWithPassphrase.
func OpenWithPassphrase(passphrase []byte, sealed *PassphraseSealed) ([]byte, error) {
	if sealed == nil {
		return nil, ErrInvalidPayload
	}

	key, err := DeriveArgon2Key(passphrase, sealed.Salt, sealed.Params)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(key)

	return OpenAES(key, sealed.Nonce, sealed.Ciphertext)
}
