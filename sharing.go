package seravault

import (
	"context"
	"fmt"

	"github.com/awnumar/memguard"
	"go.uber.org/zap"

	"github.com/seravault/client-go/internal/crypto"
)

// ShareWith grants newRecipients access to obj. The caller must already
// hold the object's content key, normally from UnwrapContentKey as an
// existing recipient. Existing entries for the same ids are replaced.
func (e *Engine) ShareWith(ctx context.Context, obj *EncryptedObject, newRecipients map[string][]byte, contentKey *SecretBytes) error {
	if len(newRecipients) == 0 {
		return nil
	}
	if err := validateRecipients(newRecipients); err != nil {
		return err
	}

	var keys map[string][]byte
	err := contentKey.Use(func(key []byte) error {
		var wrapErr error
		keys, wrapErr = e.wrapForRecipients(ctx, key, newRecipients)
		return wrapErr
	})
	if err != nil {
		return err
	}

	obj.mergeKeys(keys)
	e.metrics.Shares.Add(float64(len(keys)))
	e.logger.Debug("shared object",
		zap.String("storage_path", obj.StoragePath),
		zap.Int("added", len(keys)),
	)
	return nil
}

// Unshare removes the key-wrap entries of recipientIDs and reports how many
// were present.
//
// This does not rotate the content key. A former recipient who kept the
// content key or a plaintext copy keeps access to this version of the
// body; use RotateContentKey when that matters.
func (e *Engine) Unshare(obj *EncryptedObject, recipientIDs ...string) int {
	removed := obj.removeKeys(recipientIDs)
	e.metrics.Revocations.Add(float64(removed))
	e.logger.Debug("unshared object",
		zap.String("storage_path", obj.StoragePath),
		zap.Int("removed", removed),
	)
	return removed
}

// UpdateContent replaces the body and metadata of obj, keeping the current
// content key and therefore every recipient entry.
func (e *Engine) UpdateContent(ctx context.Context, obj *EncryptedObject, contentKey *SecretBytes, plaintext, metadata []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var content, encMeta []byte
	err := contentKey.Use(func(key []byte) error {
		var sealErr error
		content, encMeta, sealErr = sealBody(key, plaintext, metadata)
		return sealErr
	})
	if err != nil {
		return err
	}

	obj.replaceBody(content, encMeta, nil)
	return nil
}

// RotateContentKey re-encrypts obj under a new content key and replaces the
// whole key map with entries for recipients only. Anyone not in recipients
// loses access, including to copies of the old content key. The new
// content key is returned; the caller must Destroy it.
func (e *Engine) RotateContentKey(ctx context.Context, obj *EncryptedObject, plaintext, metadata []byte, recipients map[string][]byte) (*SecretBytes, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("rotate: at least one recipient is required")
	}
	if err := validateRecipients(recipients); err != nil {
		return nil, err
	}

	contentKey, err := crypto.NewContentKey()
	if err != nil {
		return nil, fmt.Errorf("generate content key: %w", err)
	}

	content, encMeta, err := sealBody(contentKey, plaintext, metadata)
	if err != nil {
		memguard.WipeBytes(contentKey)
		return nil, err
	}

	keys, err := e.wrapForRecipients(ctx, contentKey, recipients)
	if err != nil {
		memguard.WipeBytes(contentKey)
		return nil, err
	}

	obj.replaceBody(content, encMeta, keys)
	e.logger.Info("rotated content key",
		zap.String("storage_path", obj.StoragePath),
		zap.Int("recipients", len(keys)),
	)
	return NewSecretBytes(contentKey), nil
}
