package seravault

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/seravault/client-go/internal/crypto"
)

// EnvelopeFormat identifies which private-key envelope a value holds.
type EnvelopeFormat int

const (
	// FormatUnknown is the zero Envelope.
	FormatUnknown EnvelopeFormat = iota
	// FormatCurrent is an AES-256-GCM envelope under an Argon2id key.
	FormatCurrent
	// FormatLegacy is the base64 secretbox envelope under a PBKDF2 key.
	FormatLegacy
)

func (f EnvelopeFormat) String() string {
	switch f {
	case FormatCurrent:
		return "current"
	case FormatLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// KDFParams records how the current envelope's key was derived.
type KDFParams struct {
	Algorithm string `json:"algorithm"`
	Time      uint32 `json:"time"`
	MemoryKB  uint32 `json:"memoryKB"`
	Threads   uint8  `json:"threads"`
}

func (p KDFParams) argon2() crypto.Argon2Params {
	return crypto.Argon2Params{Time: p.Time, MemoryKB: p.MemoryKB, Threads: p.Threads}
}

// CurrentEnvelope is the JSON object persisted for current-format
// envelopes. Binary fields are URL-safe base64 without padding.
type CurrentEnvelope struct {
	IV         string    `json:"iv"`
	Salt       string    `json:"salt"`
	Ciphertext string    `json:"ciphertext"`
	KDFParams  KDFParams `json:"kdfParams"`
}

// Envelope is a user's persisted private key in exactly one of the two
// supported formats. The format is decided once, from the JSON shape, when
// the value is parsed: an object is current, a string is legacy.
type Envelope struct {
	format  EnvelopeFormat
	current CurrentEnvelope
	legacy  string
}

// NewCurrentEnvelope wraps c as an Envelope.
func NewCurrentEnvelope(c CurrentEnvelope) Envelope {
	return Envelope{format: FormatCurrent, current: c}
}

// NewLegacyEnvelope wraps an opaque legacy envelope string.
func NewLegacyEnvelope(s string) Envelope {
	return Envelope{format: FormatLegacy, legacy: s}
}

// Format returns which form e holds.
func (e Envelope) Format() EnvelopeFormat {
	return e.format
}

// Current returns the current-format fields when e holds them.
func (e Envelope) Current() (CurrentEnvelope, bool) {
	return e.current, e.format == FormatCurrent
}

// Legacy returns the legacy string when e holds one.
func (e Envelope) Legacy() (string, bool) {
	return e.legacy, e.format == FormatLegacy
}

// ParseEnvelope decodes a stored envelope, deciding its format from the
// JSON shape alone. Anything other than an object or a non-empty string is
// an UnsupportedFormatError.
func ParseEnvelope(data []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Envelope{}, &UnsupportedFormatError{Shape: "empty"}
	}

	switch trimmed[0] {
	case '{':
		var c CurrentEnvelope
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return Envelope{}, &UnsupportedFormatError{Shape: "malformed object"}
		}
		if c.IV == "" || c.Salt == "" || c.Ciphertext == "" {
			return Envelope{}, &UnsupportedFormatError{Shape: "object missing iv, salt or ciphertext"}
		}
		if c.KDFParams.Algorithm != crypto.KDFArgon2id {
			return Envelope{}, &UnsupportedFormatError{Shape: fmt.Sprintf("object with kdf %q", c.KDFParams.Algorithm)}
		}
		return NewCurrentEnvelope(c), nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Envelope{}, &UnsupportedFormatError{Shape: "malformed string"}
		}
		if s == "" {
			return Envelope{}, &UnsupportedFormatError{Shape: "empty string"}
		}
		return NewLegacyEnvelope(s), nil
	case '[':
		return Envelope{}, &UnsupportedFormatError{Shape: "array"}
	case 'n':
		return Envelope{}, &UnsupportedFormatError{Shape: "null"}
	case 't', 'f':
		return Envelope{}, &UnsupportedFormatError{Shape: "boolean"}
	default:
		return Envelope{}, &UnsupportedFormatError{Shape: "number or invalid JSON"}
	}
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch e.format {
	case FormatCurrent:
		return json.Marshal(e.current)
	case FormatLegacy:
		return json.Marshal(e.legacy)
	default:
		return nil, &UnsupportedFormatError{Shape: "unset envelope"}
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	parsed, err := ParseEnvelope(data)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// SealEnvelope seals privateKey under passphrase in the current format.
func (e *Engine) SealEnvelope(privateKey *SecretBytes, passphrase []byte) (Envelope, error) {
	var sealed *crypto.PassphraseSealed
	err := privateKey.Use(func(key []byte) error {
		var sealErr error
		sealed, sealErr = crypto.SealWithPassphrase(passphrase, key, e.kdf.argon2())
		return sealErr
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("seal envelope: %w", err)
	}

	return NewCurrentEnvelope(CurrentEnvelope{
		IV:         crypto.ToBase64URL(sealed.Nonce),
		Salt:       crypto.ToBase64URL(sealed.Salt),
		Ciphertext: crypto.ToBase64URL(sealed.Ciphertext),
		KDFParams: KDFParams{
			Algorithm: crypto.KDFArgon2id,
			Time:      sealed.Params.Time,
			MemoryKB:  sealed.Params.MemoryKB,
			Threads:   sealed.Params.Threads,
		},
	}), nil
}

// OpenEnvelope recovers the private key from env, whichever format it is.
// The caller owns the result and must Destroy it.
func (e *Engine) OpenEnvelope(env Envelope, passphrase []byte) (*SecretBytes, error) {
	switch env.Format() {
	case FormatCurrent:
		c, _ := env.Current()
		return e.openCurrent(c, passphrase)
	case FormatLegacy:
		s, _ := env.Legacy()
		return e.DecryptLegacyKeyEnvelope(s, passphrase)
	default:
		return nil, &UnsupportedFormatError{Shape: "unset envelope"}
	}
}

func (e *Engine) openCurrent(c CurrentEnvelope, passphrase []byte) (*SecretBytes, error) {
	nonce, err := crypto.DecodeBase64(c.IV)
	if err != nil {
		return nil, &UnsupportedFormatError{Shape: "iv is not base64"}
	}
	salt, err := crypto.DecodeBase64(c.Salt)
	if err != nil {
		return nil, &UnsupportedFormatError{Shape: "salt is not base64"}
	}
	ciphertext, err := crypto.DecodeBase64(c.Ciphertext)
	if err != nil {
		return nil, &UnsupportedFormatError{Shape: "ciphertext is not base64"}
	}

	key, err := crypto.OpenWithPassphrase(passphrase, &crypto.PassphraseSealed{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ciphertext,
		Params:     c.KDFParams.argon2(),
	})
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return nil, wrapOpenError("envelope", err)
		}
		return nil, fmt.Errorf("open envelope: %w", err)
	}
	return NewSecretBytes(key), nil
}

// DecryptLegacyKeyEnvelope opens a legacy-format envelope. Callers should
// follow a successful call with MigrateEnvelope and persist the result.
func (e *Engine) DecryptLegacyKeyEnvelope(legacy string, passphrase []byte) (*SecretBytes, error) {
	key, err := crypto.OpenLegacy(passphrase, legacy)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return nil, wrapOpenError("envelope", err)
		}
		return nil, fmt.Errorf("open legacy envelope: %w", err)
	}
	return NewSecretBytes(key), nil
}

// MigrateEnvelope re-seals a legacy envelope in the current format. It
// reports false and returns env unchanged when env is already current.
func (e *Engine) MigrateEnvelope(env Envelope, passphrase []byte) (Envelope, bool, error) {
	if env.Format() == FormatCurrent {
		return env, false, nil
	}

	privateKey, err := e.OpenEnvelope(env, passphrase)
	if err != nil {
		return env, false, err
	}
	defer privateKey.Destroy()

	migrated, err := e.SealEnvelope(privateKey, passphrase)
	if err != nil {
		return env, false, err
	}
	return migrated, true, nil
}
