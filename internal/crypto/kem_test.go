package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncapsulateDecapsulate(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}

	encapsulation, secret, err := Encapsulate(kp.PublicKey)
	if err != nil {
		t.Fatalf("Encapsulate() error = %v", err)
	}
	if len(encapsulation) != MLKEMCiphertextSize {
		t.Errorf("encapsulation size = %d, want %d", len(encapsulation), MLKEMCiphertextSize)
	}
	if len(secret) != MLKEMSharedKeySize {
		t.Errorf("shared secret size = %d, want %d", len(secret), MLKEMSharedKeySize)
	}

	recovered, err := Decapsulate(encapsulation, kp.SecretKey)
	if err != nil {
		t.Fatalf("Decapsulate() error = %v", err)
	}
	if !bytes.Equal(secret, recovered) {
		t.Error("decapsulated secret does not match")
	}
}

func TestDecapsulate_Malformed(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name          string
		encapsulation []byte
		secretKey     []byte
	}{
		{"short encapsulation", make([]byte, 10), kp.SecretKey},
		{"long encapsulation", make([]byte, MLKEMCiphertextSize+1), kp.SecretKey},
		{"short secret key", make([]byte, MLKEMCiphertextSize), kp.SecretKey[:100]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decapsulate(tt.encapsulation, tt.secretKey)
			if !errors.Is(err, ErrKeyWrap) {
				t.Errorf("expected ErrKeyWrap, got %v", err)
			}
		})
	}
}

func TestWrapUnwrapKey(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	contentKey, err := NewContentKey()
	if err != nil {
		t.Fatal(err)
	}

	blob, err := WrapKey(kp.PublicKey, contentKey)
	if err != nil {
		t.Fatalf("WrapKey() error = %v", err)
	}
	if len(blob) != KeyWrapSize {
		t.Fatalf("blob size = %d, want %d", len(blob), KeyWrapSize)
	}

	unwrapped, err := UnwrapKey(blob, kp.SecretKey)
	if err != nil {
		t.Fatalf("UnwrapKey() error = %v", err)
	}
	if !bytes.Equal(unwrapped, contentKey) {
		t.Error("unwrapped key does not match content key")
	}
}

func TestUnwrapKey_WrongSecretKey(t *testing.T) {
	owner, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	stranger, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	contentKey, _ := NewContentKey()

	blob, err := WrapKey(owner.PublicKey, contentKey)
	if err != nil {
		t.Fatal(err)
	}

	_, err = UnwrapKey(blob, stranger.SecretKey)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestUnwrapKey_MalformedBlob(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}

	_, err = UnwrapKey(make([]byte, KeyWrapSize-1), kp.SecretKey)
	if !errors.Is(err, ErrKeyWrap) {
		t.Errorf("expected ErrKeyWrap, got %v", err)
	}
}

func TestWrapKey_InvalidInputs(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := WrapKey(kp.PublicKey, make([]byte, 16)); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("expected ErrInvalidKeySize, got %v", err)
	}
	if _, err := WrapKey(kp.PublicKey[:1000], make([]byte, ContentKeySize)); !errors.Is(err, ErrInvalidPublicKeySize) {
		t.Errorf("expected ErrInvalidPublicKeySize, got %v", err)
	}
}

func TestParseKeyWrap_Layout(t *testing.T) {
	blob := make([]byte, KeyWrapSize)
	for i := range blob {
		blob[i] = byte(i)
	}

	w, err := ParseKeyWrap(blob)
	if err != nil {
		t.Fatalf("ParseKeyWrap() error = %v", err)
	}
	if len(w.Nonce) != AESNonceSize || len(w.Encapsulation) != MLKEMCiphertextSize {
		t.Errorf("unexpected field sizes: nonce=%d encapsulation=%d", len(w.Nonce), len(w.Encapsulation))
	}
	if !bytes.Equal(w.Bytes(), blob) {
		t.Error("Bytes() does not reproduce the blob")
	}
}
