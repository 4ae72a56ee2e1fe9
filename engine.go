package seravault

import (
	"context"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"go.uber.org/zap"

	"github.com/seravault/client-go/internal/crypto"
)

// Engine encrypts objects for many recipients and decrypts them for one.
//
// The body of each object is sealed once under a random content key; the
// content key is then wrapped separately for every recipient with ML-KEM-768
// and AES-256-GCM. Sharing re-wraps 32 bytes instead of re-encrypting the
// body.
//
// An Engine holds no key material and is safe for concurrent use.
type Engine struct {
	logger         *zap.Logger
	metrics        *Metrics
	kdf            KDFParams
	newStoragePath func() string
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	return newEngine(newConfig(opts))
}

func newEngine(cfg *config) *Engine {
	return &Engine{
		logger:         cfg.logger.Named("engine"),
		metrics:        cfg.metrics,
		kdf:            cfg.kdf,
		newStoragePath: cfg.newStoragePath,
	}
}

// EncryptForRecipients seals plaintext and metadata under a fresh content
// key and wraps that key for every entry in recipients (id -> public key).
func (e *Engine) EncryptForRecipients(ctx context.Context, plaintext, metadata []byte, recipients map[string][]byte) (*EncryptedObject, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("encrypt: at least one recipient is required")
	}
	if err := validateRecipients(recipients); err != nil {
		return nil, err
	}

	contentKey, err := crypto.NewContentKey()
	if err != nil {
		return nil, fmt.Errorf("generate content key: %w", err)
	}
	defer memguard.WipeBytes(contentKey)

	content, encMeta, err := sealBody(contentKey, plaintext, metadata)
	if err != nil {
		return nil, err
	}

	keys, err := e.wrapForRecipients(ctx, contentKey, recipients)
	if err != nil {
		return nil, err
	}

	obj := NewEncryptedObject(e.newStoragePath(), content, encMeta, keys)
	e.metrics.Encryptions.Inc()
	e.logger.Debug("encrypted object",
		zap.String("storage_path", obj.StoragePath),
		zap.Int("recipients", len(keys)),
		zap.Int("content_bytes", len(content)),
	)
	return obj, nil
}

// Decrypt returns the plaintext body of obj for recipientID.
func (e *Engine) Decrypt(ctx context.Context, obj *EncryptedObject, recipientID string, privateKey []byte) ([]byte, error) {
	content, _, blob, ok := obj.view(recipientID)
	return e.open(ctx, obj, recipientID, privateKey, "content", content, blob, ok)
}

// DecryptMetadata returns the plaintext metadata of obj for recipientID.
func (e *Engine) DecryptMetadata(ctx context.Context, obj *EncryptedObject, recipientID string, privateKey []byte) ([]byte, error) {
	_, metadata, blob, ok := obj.view(recipientID)
	return e.open(ctx, obj, recipientID, privateKey, "metadata", metadata, blob, ok)
}

// UnwrapContentKey recovers the content key of obj for recipientID. The
// caller owns the result and must Destroy it.
func (e *Engine) UnwrapContentKey(ctx context.Context, obj *EncryptedObject, recipientID string, privateKey []byte) (*SecretBytes, error) {
	blob, ok := obj.KeyWrap(recipientID)
	return e.unwrap(ctx, obj, recipientID, privateKey, blob, ok)
}

func (e *Engine) unwrap(ctx context.Context, obj *EncryptedObject, recipientID string, privateKey, blob []byte, ok bool) (*SecretBytes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, &AccessDeniedError{RecipientID: recipientID, StoragePath: obj.StoragePath}
	}

	contentKey, err := crypto.UnwrapKey(blob, privateKey)
	if err != nil {
		return nil, wrapUnwrapError(recipientID, err)
	}
	return NewSecretBytes(contentKey), nil
}

// open decrypts sealed with the content key recovered from blob. sealed and
// blob must come from the same view of obj.
func (e *Engine) open(ctx context.Context, obj *EncryptedObject, recipientID string, privateKey []byte, stage string, sealed, blob []byte, ok bool) ([]byte, error) {
	contentKey, err := e.unwrap(ctx, obj, recipientID, privateKey, blob, ok)
	if err != nil {
		e.recordDecrypt(obj, recipientID, err)
		return nil, err
	}
	defer contentKey.Destroy()

	var plaintext []byte
	err = contentKey.Use(func(key []byte) error {
		var openErr error
		plaintext, openErr = crypto.DecryptAES(key, sealed)
		return wrapOpenError(stage, openErr)
	})
	e.recordDecrypt(obj, recipientID, err)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

func (e *Engine) recordDecrypt(obj *EncryptedObject, recipientID string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrAccessDenied):
		result = "access_denied"
	case errors.Is(err, ErrKeyWrap):
		result = "key_wrap"
	case errors.Is(err, ErrDecryptionFailed):
		result = "auth_failed"
	default:
		result = "error"
	}
	e.metrics.Decryptions.WithLabelValues(result).Inc()

	if err != nil {
		e.logger.Debug("decrypt failed",
			zap.String("storage_path", obj.StoragePath),
			zap.String("recipient", recipientID),
			zap.String("result", result),
		)
	}
}

// wrapForRecipients produces one key-wrap blob per recipient.
func (e *Engine) wrapForRecipients(ctx context.Context, contentKey []byte, recipients map[string][]byte) (map[string][]byte, error) {
	keys := make(map[string][]byte, len(recipients))
	for id, publicKey := range recipients {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		blob, err := crypto.WrapKey(publicKey, contentKey)
		if err != nil {
			if errors.Is(err, crypto.ErrInvalidPublicKey) || errors.Is(err, crypto.ErrInvalidPublicKeySize) {
				return nil, &InvalidPublicKeyError{RecipientID: id, Size: len(publicKey)}
			}
			return nil, &KeyWrapError{RecipientID: id, Err: err}
		}
		keys[id] = blob
	}
	return keys, nil
}

// validateRecipients rejects the whole batch before any key is wrapped.
func validateRecipients(recipients map[string][]byte) error {
	for id, publicKey := range recipients {
		if id == "" {
			return fmt.Errorf("%w: empty recipient id", ErrInvalidPublicKey)
		}
		if err := crypto.ValidatePublicKey(publicKey); err != nil {
			return &InvalidPublicKeyError{RecipientID: id, Size: len(publicKey)}
		}
	}
	return nil
}

func sealBody(contentKey, plaintext, metadata []byte) (content, encMeta []byte, err error) {
	content, err = crypto.EncryptAES(contentKey, plaintext)
	if err != nil {
		return nil, nil, fmt.Errorf("seal content: %w", err)
	}
	encMeta, err = crypto.EncryptAES(contentKey, metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("seal metadata: %w", err)
	}
	return content, encMeta, nil
}
