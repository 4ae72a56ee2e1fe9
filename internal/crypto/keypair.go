package crypto

import (
	"crypto/subtle"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// Keypair represents an ML-KEM-768 keypair for key encapsulation.
type Keypair struct {
	// PublicKey is the raw ML-KEM-768 public key bytes.
	PublicKey []byte
	// SecretKey is the raw ML-KEM-768 secret key bytes.
	SecretKey []byte
	// PublicKeyB64 is the public key encoded as URL-safe base64.
	PublicKeyB64 string
}

// GenerateKeypair creates a new ML-KEM-768 keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := mlkem768.GenerateKeyPair(randReader)
	if err != nil {
		return nil, err
	}

	// MarshalBinary never fails for valid keys from GenerateKeyPair
	pubBytes, _ := pub.MarshalBinary()
	privBytes, _ := priv.MarshalBinary()

	return &Keypair{
		PublicKey:    pubBytes,
		SecretKey:    privBytes,
		PublicKeyB64: ToBase64URL(pubBytes),
	}, nil
}

// KeypairFromSecretKey reconstructs a keypair from the secret key.
// The public key is embedded in the secret key at offset 1152.
func KeypairFromSecretKey(secretKey []byte) (*Keypair, error) {
	publicKey, err := DerivePublicKeyFromSecret(secretKey)
	if err != nil {
		return nil, err
	}

	return &Keypair{
		PublicKey:    publicKey,
		SecretKey:    secretKey,
		PublicKeyB64: ToBase64URL(publicKey),
	}, nil
}

// ValidatePublicKey checks that publicKey is exactly an ML-KEM-768 public
// key and that the KEM accepts it.
func ValidatePublicKey(publicKey []byte) error {
	if len(publicKey) != MLKEMPublicKeySize {
		return ErrInvalidPublicKeySize
	}
	if _, err := mlkem768.Scheme().UnmarshalBinaryPublicKey(publicKey); err != nil {
		return ErrInvalidPublicKey
	}
	return nil
}

// ValidateSecretKey checks the size of secretKey and that it parses.
func ValidateSecretKey(secretKey []byte) error {
	if len(secretKey) != MLKEMSecretKeySize {
		return ErrInvalidSecretKeySize
	}

	var priv mlkem768.PrivateKey
	if err := priv.Unpack(secretKey); err != nil {
		return ErrInvalidSecretKeySize
	}
	return nil
}

// DerivePublicKeyFromSecret extracts the public key from a secret key.
// In ML-KEM-768, the public key is embedded in the secret key.
// Returns an error if the secret key has an invalid size.
func DerivePublicKeyFromSecret(secretKey []byte) ([]byte, error) {
	if len(secretKey) != MLKEMSecretKeySize {
		return nil, ErrInvalidSecretKeySize
	}

	// Public key is embedded at offset 1152 in circl's ML-KEM-768 secret key format
	publicKey := make([]byte, MLKEMPublicKeySize)
	copy(publicKey, secretKey[PublicKeyOffset:PublicKeyOffset+MLKEMPublicKeySize])
	return publicKey, nil
}

// SecretKeyMatches reports whether secretKey embeds publicKey.
// The comparison runs in constant time.
func SecretKeyMatches(secretKey, publicKey []byte) bool {
	if len(secretKey) != MLKEMSecretKeySize || len(publicKey) != MLKEMPublicKeySize {
		return false
	}
	embedded := secretKey[PublicKeyOffset : PublicKeyOffset+MLKEMPublicKeySize]
	return subtle.ConstantTimeCompare(embedded, publicKey) == 1
}
