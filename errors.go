package seravault

import (
	"errors"
	"fmt"

	"github.com/seravault/client-go/internal/crypto"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrAccessDenied is returned when a recipient has no key-wrap entry on
	// an object, because access was never granted or has been revoked.
	ErrAccessDenied = errors.New("access denied")

	// ErrDecryptionFailed is returned when AEAD authentication fails. A wrong
	// key and corrupted ciphertext are deliberately not distinguished.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrKeyWrap is returned when a key-wrap blob is malformed or KEM
	// decapsulation cannot be performed.
	ErrKeyWrap = errors.New("key wrap failed")

	// ErrUnsupportedFormat is returned for a private-key envelope whose
	// shape matches neither the current nor the legacy format.
	ErrUnsupportedFormat = errors.New("unsupported envelope format")

	// ErrUnlockInProgress is returned when an unlock is attempted while
	// another one is still running.
	ErrUnlockInProgress = errors.New("unlock already in progress")

	// ErrUnlockFailed is returned when the private key could not be
	// recovered. The cause is intentionally not exposed.
	ErrUnlockFailed = errors.New("could not unlock")

	// ErrUnlockThrottled is returned when unlock attempts exceed the
	// configured rate.
	ErrUnlockThrottled = errors.New("too many unlock attempts")

	// ErrLocked is returned when key material is requested but no session
	// is live.
	ErrLocked = errors.New("private key is locked")

	// ErrStoreClosed is returned by a session store after Shutdown.
	ErrStoreClosed = errors.New("session store has been shut down")

	// ErrInvalidPublicKey is returned when a recipient public key is not a
	// valid ML-KEM-768 public key.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidConfig is returned when configuration values are out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// SeraVaultError is implemented by all typed errors in this package.
type SeraVaultError interface {
	error
	SeraVaultError() // marker method
}

// AccessDeniedError reports that RecipientID has no entry in an object's
// encrypted keys.
type AccessDeniedError struct {
	RecipientID string
	StoragePath string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: recipient %q has no key for %q", e.RecipientID, e.StoragePath)
}

// Is implements errors.Is for sentinel error matching.
func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

// SeraVaultError implements the SeraVaultError interface.
func (e *AccessDeniedError) SeraVaultError() {}

// DecryptError represents an AEAD failure while decrypting.
type DecryptError struct {
	Stage string // "content-key", "content", "metadata", "envelope"
	Err   error
}

func (e *DecryptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("decryption failed at %s", e.Stage)
}

// Unwrap returns the underlying error.
func (e *DecryptError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *DecryptError) Is(target error) bool {
	return target == ErrDecryptionFailed
}

// SeraVaultError implements the SeraVaultError interface.
func (e *DecryptError) SeraVaultError() {}

// KeyWrapError represents a KEM-level failure for one recipient.
type KeyWrapError struct {
	RecipientID string
	Err         error
}

func (e *KeyWrapError) Error() string {
	return fmt.Sprintf("key wrap failed for recipient %q: %v", e.RecipientID, e.Err)
}

// Unwrap returns the underlying error.
func (e *KeyWrapError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *KeyWrapError) Is(target error) bool {
	return target == ErrKeyWrap
}

// SeraVaultError implements the SeraVaultError interface.
func (e *KeyWrapError) SeraVaultError() {}

// UnsupportedFormatError reports the shape found where an envelope was expected.
type UnsupportedFormatError struct {
	Shape string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported envelope format: %s", e.Shape)
}

// Is implements errors.Is for sentinel error matching.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// SeraVaultError implements the SeraVaultError interface.
func (e *UnsupportedFormatError) SeraVaultError() {}

// UnlockInProgressError is returned for an unlock that overlaps another.
type UnlockInProgressError struct {
	Method UnlockMethod
}

func (e *UnlockInProgressError) Error() string {
	return fmt.Sprintf("%s unlock rejected: another unlock is in progress", e.Method)
}

// Is implements errors.Is for sentinel error matching.
func (e *UnlockInProgressError) Is(target error) bool {
	return target == ErrUnlockInProgress
}

// SeraVaultError implements the SeraVaultError interface.
func (e *UnlockInProgressError) SeraVaultError() {}

// UnlockError is the only failure an unlock reports to its caller. Its
// message never says whether the passphrase was wrong or the stored key was
// damaged.
type UnlockError struct {
	Method UnlockMethod
}

func (e *UnlockError) Error() string {
	return ErrUnlockFailed.Error()
}

// Is implements errors.Is for sentinel error matching.
func (e *UnlockError) Is(target error) bool {
	return target == ErrUnlockFailed
}

// SeraVaultError implements the SeraVaultError interface.
func (e *UnlockError) SeraVaultError() {}

// InvalidPublicKeyError reports a recipient public key that was rejected.
type InvalidPublicKeyError struct {
	RecipientID string
	Size        int
}

func (e *InvalidPublicKeyError) Error() string {
	return fmt.Sprintf("invalid public key for recipient %q (%d bytes)", e.RecipientID, e.Size)
}

// Is implements errors.Is for sentinel error matching.
func (e *InvalidPublicKeyError) Is(target error) bool {
	return target == ErrInvalidPublicKey
}

// SeraVaultError implements the SeraVaultError interface.
func (e *InvalidPublicKeyError) SeraVaultError() {}

// wrapUnwrapError converts key-unwrap failures from the crypto layer into
// public typed errors.
func wrapUnwrapError(recipientID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, crypto.ErrKeyWrap) {
		return &KeyWrapError{RecipientID: recipientID, Err: err}
	}
	if errors.Is(err, crypto.ErrDecryptionFailed) {
		return &DecryptError{Stage: "content-key", Err: err}
	}
	return err
}

// wrapOpenError converts AEAD failures on a body into a DecryptError.
func wrapOpenError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &DecryptError{Stage: stage, Err: err}
}
