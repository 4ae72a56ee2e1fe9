package crypto

import (
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// Encapsulate derives a fresh shared secret for publicKey and returns the
// ML-KEM ciphertext that transports it.
func Encapsulate(publicKey []byte) (encapsulation, sharedSecret []byte, err error) {
	if len(publicKey) != MLKEMPublicKeySize {
		return nil, nil, ErrInvalidPublicKeySize
	}

	scheme := mlkem768.Scheme()
	pk, err := scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, nil, ErrInvalidPublicKey
	}

	encapsulation, sharedSecret, err = scheme.Encapsulate(pk)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encapsulate: %v", ErrKeyWrap, err)
	}
	return encapsulation, sharedSecret, nil
}

// Decapsulate recovers the shared secret carried by encapsulation.
//
// ML-KEM uses implicit rejection: a wrong but well-formed secret key yields
// an unrelated secret instead of an error. Callers detect that case when the
// AEAD layer keyed by the secret fails to authenticate.
func Decapsulate(encapsulation, secretKey []byte) ([]byte, error) {
	if len(encapsulation) != MLKEMCiphertextSize {
		return nil, fmt.Errorf("%w: %w", ErrKeyWrap, ErrInvalidCiphertextSize)
	}
	if len(secretKey) != MLKEMSecretKeySize {
		return nil, fmt.Errorf("%w: %w", ErrKeyWrap, ErrInvalidSecretKeySize)
	}

	var privKey mlkem768.PrivateKey
	if err := privKey.Unpack(secretKey); err != nil {
		return nil, fmt.Errorf("%w: unmarshal private key: %v", ErrKeyWrap, err)
	}

	sharedSecret := make([]byte, MLKEMSharedKeySize)
	privKey.DecapsulateTo(sharedSecret, encapsulation)

	return sharedSecret, nil
}

// KeyWrap is a parsed per-recipient key-wrap blob.
type KeyWrap struct {
	Nonce         []byte
	Encapsulation []byte
	WrappedKey    []byte
}

// ParseKeyWrap splits blob by the fixed field lengths.
func ParseKeyWrap(blob []byte) (*KeyWrap, error) {
	if len(blob) != KeyWrapSize {
		return nil, fmt.Errorf("%w: blob is %d bytes, want %d", ErrKeyWrap, len(blob), KeyWrapSize)
	}

	encEnd := AESNonceSize + MLKEMCiphertextSize
	return &KeyWrap{
		Nonce:         blob[:AESNonceSize],
		Encapsulation: blob[AESNonceSize:encEnd],
		WrappedKey:    blob[encEnd:],
	}, nil
}

// Bytes serializes the key wrap as nonce || encapsulation || wrapped key.
func (w *KeyWrap) Bytes() []byte {
	out := make([]byte, 0, len(w.Nonce)+len(w.Encapsulation)+len(w.WrappedKey))
	out = append(out, w.Nonce...)
	out = append(out, w.Encapsulation...)
	return append(out, w.WrappedKey...)
}

// WrapKey encapsulates to publicKey and seals contentKey under the
// resulting shared secret.
func WrapKey(publicKey, contentKey []byte) ([]byte, error) {
	if len(contentKey) != ContentKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(contentKey), ContentKeySize)
	}

	encapsulation, sharedSecret, err := Encapsulate(publicKey)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(sharedSecret)

	nonce, wrapped, err := SealAES(sharedSecret, contentKey)
	if err != nil {
		return nil, err
	}

	w := KeyWrap{Nonce: nonce, Encapsulation: encapsulation, WrappedKey: wrapped}
	return w.Bytes(), nil
}

// UnwrapKey reverses WrapKey. Malformed blobs and unusable secret keys
// return ErrKeyWrap; authentication failures return ErrDecryptionFailed.
func UnwrapKey(blob, secretKey []byte) ([]byte, error) {
	w, err := ParseKeyWrap(blob)
	if err != nil {
		return nil, err
	}

	sharedSecret, err := Decapsulate(w.Encapsulation, secretKey)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(sharedSecret)

	contentKey, err := OpenAES(sharedSecret, w.Nonce, w.WrappedKey)
	if err != nil {
		return nil, err
	}
	return contentKey, nil
}
