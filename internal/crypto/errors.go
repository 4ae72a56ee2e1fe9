package crypto

import "errors"

var (
	// ErrInvalidSecretKeySize is returned when the secret key size is invalid.
	ErrInvalidSecretKeySize = errors.New("invalid secret key size")

	// ErrInvalidPublicKeySize is returned when the public key size is invalid.
	ErrInvalidPublicKeySize = errors.New("invalid public key size")

	// ErrInvalidPublicKey is returned when a correctly sized public key
	// cannot be parsed by the KEM.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidCiphertextSize is returned when the ciphertext size is invalid.
	ErrInvalidCiphertextSize = errors.New("invalid ciphertext size")

	// ErrDecryptionFailed is returned when AEAD tag verification fails.
	// A wrong key and a corrupted ciphertext are indistinguishable here.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrKeyWrap is returned when a key-wrap blob is malformed or the KEM
	// decapsulation cannot run.
	ErrKeyWrap = errors.New("key wrap failed")

	// ErrInvalidKeySize is returned when the AES key size is invalid.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidNonceSize is returned when the nonce size is invalid.
	ErrInvalidNonceSize = errors.New("invalid nonce size")

	// ErrInvalidPayload is returned when an encrypted payload structure is invalid.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidKDFParams is returned when stored KDF parameters are missing
	// or outside the accepted range.
	ErrInvalidKDFParams = errors.New("invalid kdf parameters")

	// ErrInvalidSize is returned when a decoded field has an incorrect size.
	ErrInvalidSize = errors.New("invalid size")
)
