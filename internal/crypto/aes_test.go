package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func randomKey(t testing.TB) []byte {
	t.Helper()
	key := make([]byte, AESKeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return key
}

func TestEncryptAES_DecryptAES_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"simple", []byte("hello world")},
		{"json", []byte(`{"name": "report.pdf", "size": 123}`)},
		{"binary", []byte{0x00, 0xff, 0x7f, 0x80}},
		{"large", make([]byte, 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := randomKey(t)

			ciphertext, err := EncryptAES(key, tt.plaintext)
			if err != nil {
				t.Fatalf("EncryptAES() error = %v", err)
			}

			expectedLen := AESNonceSize + len(tt.plaintext) + AESTagSize
			if len(ciphertext) != expectedLen {
				t.Errorf("ciphertext length = %d, want %d", len(ciphertext), expectedLen)
			}

			decrypted, err := DecryptAES(key, ciphertext)
			if err != nil {
				t.Fatalf("DecryptAES() error = %v", err)
			}

			if !bytes.Equal(decrypted, tt.plaintext) {
				t.Errorf("decrypted = %v, want %v", decrypted, tt.plaintext)
			}
		})
	}
}

func TestSealAES_FreshNonceEveryCall(t *testing.T) {
	key := randomKey(t)
	seen := make(map[string]bool)

	for i := 0; i < 64; i++ {
		nonce, _, err := SealAES(key, []byte("same plaintext"))
		if err != nil {
			t.Fatalf("SealAES() error = %v", err)
		}
		if len(nonce) != AESNonceSize {
			t.Fatalf("nonce length = %d, want %d", len(nonce), AESNonceSize)
		}
		if seen[string(nonce)] {
			t.Fatal("SealAES() reused a nonce")
		}
		seen[string(nonce)] = true
	}
}

func TestEncryptAES_InvalidKeySize(t *testing.T) {
	tests := []struct {
		name    string
		keySize int
	}{
		{"empty", 0},
		{"too short", 16},
		{"too long", 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncryptAES(make([]byte, tt.keySize), []byte("test"))
			if !errors.Is(err, ErrInvalidKeySize) {
				t.Errorf("expected ErrInvalidKeySize, got %v", err)
			}
		})
	}
}

func TestOpenAES_InvalidNonceSize(t *testing.T) {
	_, err := OpenAES(randomKey(t), make([]byte, 8), make([]byte, 32))
	if !errors.Is(err, ErrInvalidNonceSize) {
		t.Errorf("expected ErrInvalidNonceSize, got %v", err)
	}
}

func TestDecryptAES_CiphertextTooShort(t *testing.T) {
	_, err := DecryptAES(randomKey(t), make([]byte, AESNonceSize+AESTagSize-1))
	if !errors.Is(err, ErrInvalidCiphertextSize) {
		t.Errorf("expected ErrInvalidCiphertextSize, got %v", err)
	}
}

func TestDecryptAES_TamperedCiphertext(t *testing.T) {
	key := randomKey(t)
	ciphertext, err := EncryptAES(key, []byte("secret message"))
	if err != nil {
		t.Fatal(err)
	}

	for _, idx := range []int{0, AESNonceSize, len(ciphertext) - 1} {
		tampered := bytes.Clone(ciphertext)
		tampered[idx] ^= 0x01

		plaintext, err := DecryptAES(key, tampered)
		if !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("byte %d: expected ErrDecryptionFailed, got %v", idx, err)
		}
		if plaintext != nil {
			t.Errorf("byte %d: got partial plaintext %q", idx, plaintext)
		}
	}
}

func TestDecryptAES_WrongKey(t *testing.T) {
	ciphertext, err := EncryptAES(randomKey(t), []byte("secret message"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = DecryptAES(randomKey(t), ciphertext)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func BenchmarkEncryptAES(b *testing.B) {
	key := randomKey(b)
	plaintext := make([]byte, 4096)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = EncryptAES(key, plaintext)
	}
}
