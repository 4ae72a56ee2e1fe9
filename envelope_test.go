package seravault

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/seravault/client-go/internal/crypto"
)

func TestParseEnvelope_Shapes(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format EnvelopeFormat
	}{
		{"current object", `{"iv":"AA","salt":"AA","ciphertext":"AA","kdfParams":{"algorithm":"argon2id","time":1,"memoryKB":8192,"threads":1}}`, FormatCurrent},
		{"current object with whitespace", "  \n{\"iv\":\"AA\",\"salt\":\"AA\",\"ciphertext\":\"AA\",\"kdfParams\":{\"algorithm\":\"argon2id\"}}", FormatCurrent},
		{"legacy string", `"c2FsdHNhbHQ="`, FormatLegacy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.input))
			if err != nil {
				t.Fatalf("ParseEnvelope() error = %v", err)
			}
			if env.Format() != tt.format {
				t.Errorf("Format() = %v, want %v", env.Format(), tt.format)
			}
		})
	}
}

func TestParseEnvelope_Unsupported(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"null", "null"},
		{"number", "42"},
		{"boolean", "true"},
		{"array", `["a"]`},
		{"empty string", `""`},
		{"object missing ciphertext", `{"iv":"AA","salt":"AA","kdfParams":{"algorithm":"argon2id"}}`},
		{"object with unknown kdf", `{"iv":"AA","salt":"AA","ciphertext":"AA","kdfParams":{"algorithm":"scrypt"}}`},
		{"object with version flag only", `{"version":2}`},
		{"malformed object", `{"iv":`},
		{"garbage", "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(tt.input))
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
			}
			var ufe *UnsupportedFormatError
			if !errors.As(err, &ufe) || ufe.Shape == "" {
				t.Errorf("expected *UnsupportedFormatError with a shape, got %#v", err)
			}
		})
	}
}

func TestEnvelope_JSON(t *testing.T) {
	engine := newTestEngine()
	kp := newTestKeypair(t)

	env, err := engine.SealEnvelope(NewSecretBytes(secretCopy(kp.SecretKey)), []byte("passphrase"))
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if data[0] != '{' {
		t.Errorf("current envelope should marshal to an object, got %s", data)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"iv", "salt", "ciphertext", "kdfParams"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing field %q", field)
		}
	}

	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Format() != FormatCurrent {
		t.Errorf("decoded Format() = %v", decoded.Format())
	}

	legacy, err := json.Marshal(NewLegacyEnvelope("abc"))
	if err != nil {
		t.Fatal(err)
	}
	if string(legacy) != `"abc"` {
		t.Errorf("legacy envelope marshalled to %s", legacy)
	}

	if _, err := json.Marshal(Envelope{}); err == nil {
		t.Error("marshalling an unset envelope should fail")
	}
}

func TestSealOpenEnvelope(t *testing.T) {
	engine := newTestEngine()
	kp := newTestKeypair(t)
	passphrase := []byte("correct horse battery staple")

	env, err := engine.SealEnvelope(NewSecretBytes(secretCopy(kp.SecretKey)), passphrase)
	if err != nil {
		t.Fatalf("SealEnvelope() error = %v", err)
	}
	c, ok := env.Current()
	if !ok {
		t.Fatal("SealEnvelope() must produce a current-format envelope")
	}
	if c.KDFParams != testKDF {
		t.Errorf("KDFParams = %+v, want %+v", c.KDFParams, testKDF)
	}

	key, err := engine.OpenEnvelope(env, passphrase)
	if err != nil {
		t.Fatalf("OpenEnvelope() error = %v", err)
	}
	defer key.Destroy()
	_ = key.Use(func(b []byte) error {
		if !bytes.Equal(b, kp.SecretKey) {
			t.Error("opened key does not match")
		}
		return nil
	})

	_, err = engine.OpenEnvelope(env, []byte("wrong"))
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("wrong passphrase: expected ErrDecryptionFailed, got %v", err)
	}
}

func TestOpenEnvelope_WeakKDFRejected(t *testing.T) {
	engine := newTestEngine()
	kp := newTestKeypair(t)

	env, err := engine.SealEnvelope(NewSecretBytes(secretCopy(kp.SecretKey)), []byte("pw"))
	if err != nil {
		t.Fatal(err)
	}
	sealed, _ := env.Current()

	tests := []struct {
		name   string
		tamper func(p *KDFParams)
	}{
		{"tiny memory", func(p *KDFParams) { p.MemoryKB = 16 }},
		{"zero time", func(p *KDFParams) { p.Time = 0 }},
		{"huge memory", func(p *KDFParams) { p.MemoryKB = 4294967295 }},
		{"huge time", func(p *KDFParams) { p.Time = 4294967295 }},
		{"huge threads", func(p *KDFParams) { p.Threads = 255 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sealed
			tt.tamper(&c.KDFParams)

			data, err := json.Marshal(NewCurrentEnvelope(c))
			if err != nil {
				t.Fatal(err)
			}
			parsed, err := ParseEnvelope(data)
			if err != nil {
				t.Fatalf("ParseEnvelope() error = %v", err)
			}

			_, err = engine.OpenEnvelope(parsed, []byte("pw"))
			if !errors.Is(err, crypto.ErrInvalidKDFParams) {
				t.Errorf("expected ErrInvalidKDFParams, got %v", err)
			}
		})
	}
}

func TestDecryptLegacyKeyEnvelope(t *testing.T) {
	engine := newTestEngine()
	kp := newTestKeypair(t)
	passphrase := []byte("old passphrase")

	legacy, err := crypto.SealLegacy(passphrase, kp.SecretKey)
	if err != nil {
		t.Fatal(err)
	}

	key, err := engine.DecryptLegacyKeyEnvelope(legacy, passphrase)
	if err != nil {
		t.Fatalf("DecryptLegacyKeyEnvelope() error = %v", err)
	}
	defer key.Destroy()
	if key.Len() != crypto.MLKEMSecretKeySize {
		t.Errorf("key length = %d", key.Len())
	}

	if _, err := engine.DecryptLegacyKeyEnvelope(legacy, []byte("nope")); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("wrong passphrase: expected ErrDecryptionFailed, got %v", err)
	}
}

func TestMigrateEnvelope(t *testing.T) {
	engine := newTestEngine()
	kp := newTestKeypair(t)
	passphrase := []byte("old passphrase")

	legacy, err := crypto.SealLegacy(passphrase, kp.SecretKey)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(legacy)
	if err != nil {
		t.Fatal(err)
	}
	env, err := ParseEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	if env.Format() != FormatLegacy {
		t.Fatalf("Format() = %v, want legacy", env.Format())
	}

	migrated, ok, err := engine.MigrateEnvelope(env, passphrase)
	if err != nil {
		t.Fatalf("MigrateEnvelope() error = %v", err)
	}
	if !ok || migrated.Format() != FormatCurrent {
		t.Fatalf("MigrateEnvelope() = %v, %v", migrated.Format(), ok)
	}

	// The migrated envelope survives storage and opens to the same key.
	stored, err := json.Marshal(migrated)
	if err != nil {
		t.Fatal(err)
	}
	reloaded, err := ParseEnvelope(stored)
	if err != nil {
		t.Fatal(err)
	}
	key, err := engine.OpenEnvelope(reloaded, passphrase)
	if err != nil {
		t.Fatalf("OpenEnvelope(migrated) error = %v", err)
	}
	defer key.Destroy()
	_ = key.Use(func(b []byte) error {
		if !bytes.Equal(b, kp.SecretKey) {
			t.Error("migrated envelope opened to a different key")
		}
		return nil
	})

	again, ok, err := engine.MigrateEnvelope(reloaded, passphrase)
	if err != nil || ok {
		t.Errorf("migrating a current envelope = %v, %v", ok, err)
	}
	if again.Format() != FormatCurrent {
		t.Error("current envelope should be returned unchanged")
	}

	if _, ok, err := engine.MigrateEnvelope(env, []byte("wrong")); ok || !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("wrong passphrase: ok=%v err=%v", ok, err)
	}
}

func TestParseKeyFile(t *testing.T) {
	kp := newTestKeypair(t)

	tests := []struct {
		name string
		data []byte
	}{
		{"raw", secretCopy(kp.SecretKey)},
		{"base64url", []byte(crypto.ToBase64URL(kp.SecretKey))},
		{"base64 with newline", []byte(crypto.ToBase64(kp.SecretKey) + "\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKeyFile(tt.data)
			if err != nil {
				t.Fatalf("ParseKeyFile() error = %v", err)
			}
			defer key.Destroy()
			_ = key.Use(func(b []byte) error {
				if !bytes.Equal(b, kp.SecretKey) {
					t.Error("parsed key mismatch")
				}
				return nil
			})
		})
	}

	for _, bad := range [][]byte{[]byte("###"), []byte(crypto.ToBase64(make([]byte, 10)))} {
		if _, err := ParseKeyFile(bad); err == nil {
			t.Errorf("ParseKeyFile(%q) should fail", bad)
		}
	}
}
