package seravault

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Vault ties an Engine, a SessionStore and a Custody together for one
// signed-in account. Operations that need the private key take it from the
// session store, which counts as activity and keeps the session alive.
type Vault struct {
	*Engine

	accountID string
	store     *SessionStore
	custody   *Custody
	logger    *zap.Logger
	ownsStore bool
}

// New creates a Vault for accountID. Unless WithSessionStore is given, the
// Vault owns a private SessionStore and shuts it down on Close.
func New(accountID string, profile Profile, opts ...VaultOption) *Vault {
	vc := &vaultConfig{}
	for _, opt := range opts {
		opt(vc)
	}
	cfg := newConfig(vc.opts)

	store := vc.store
	owns := false
	if store == nil {
		store = newSessionStore(cfg)
		owns = true
	}

	return &Vault{
		Engine:    newEngine(cfg),
		accountID: accountID,
		store:     store,
		custody:   newCustody(profile, store, cfg),
		logger:    cfg.logger.Named("vault").With(zap.String("account", accountID)),
		ownsStore: owns,
	}
}

type vaultConfig struct {
	opts  []Option
	store *SessionStore
}

// VaultOption configures a Vault.
type VaultOption func(*vaultConfig)

// WithOptions applies shared options to every component of the Vault.
func WithOptions(opts ...Option) VaultOption {
	return func(vc *vaultConfig) {
		vc.opts = append(vc.opts, opts...)
	}
}

// WithSessionStore makes the Vault use an existing store. The caller keeps
// ownership and must shut it down.
func WithSessionStore(store *SessionStore) VaultOption {
	return func(vc *vaultConfig) {
		vc.store = store
	}
}

// AccountID returns the recipient id of the signed-in account.
func (v *Vault) AccountID() string {
	return v.accountID
}

// Unlock unlocks the account private key. See Custody.Unlock.
func (v *Vault) Unlock(ctx context.Context, method UnlockMethod, cred Credential) error {
	return v.custody.Unlock(ctx, method, cred)
}

// Lock wipes the unlocked private key.
func (v *Vault) Lock() {
	v.custody.Lock()
}

// State returns the custody state.
func (v *Vault) State() State {
	return v.custody.State()
}

// Sessions returns the session store backing the Vault.
func (v *Vault) Sessions() *SessionStore {
	return v.store
}

// OnTimeout registers a callback for ended sessions.
func (v *Vault) OnTimeout(callback func(TimeoutEvent)) Subscription {
	return v.store.OnTimeout(callback)
}

// RemoveTimeoutCallback unregisters a callback added with OnTimeout.
func (v *Vault) RemoveTimeoutCallback(sub Subscription) {
	v.store.RemoveTimeoutCallback(sub)
}

// Touch records user activity, restarting the session timeout.
func (v *Vault) Touch() error {
	return v.store.Touch(DefaultSlot)
}

// SetBackground forwards visibility changes to the session store.
func (v *Vault) SetBackground(background bool) {
	v.store.SetBackground(background)
}

// Open decrypts obj for the signed-in account with the unlocked key.
func (v *Vault) Open(ctx context.Context, obj *EncryptedObject) ([]byte, error) {
	var plaintext []byte
	err := v.custody.WithPrivateKey(func(privateKey []byte) error {
		var err error
		plaintext, err = v.Decrypt(ctx, obj, v.accountID, privateKey)
		return err
	})
	return plaintext, err
}

// OpenMetadata decrypts the metadata of obj for the signed-in account.
func (v *Vault) OpenMetadata(ctx context.Context, obj *EncryptedObject) ([]byte, error) {
	var metadata []byte
	err := v.custody.WithPrivateKey(func(privateKey []byte) error {
		var err error
		metadata, err = v.DecryptMetadata(ctx, obj, v.accountID, privateKey)
		return err
	})
	return metadata, err
}

// Share grants newRecipients access to obj, using the signed-in account's
// own entry to recover the content key.
func (v *Vault) Share(ctx context.Context, obj *EncryptedObject, newRecipients map[string][]byte) error {
	contentKey, err := v.contentKey(ctx, obj)
	if err != nil {
		return err
	}
	defer contentKey.Destroy()

	if err := v.ShareWith(ctx, obj, newRecipients, contentKey); err != nil {
		return fmt.Errorf("share %s: %w", obj.StoragePath, err)
	}
	return nil
}

// Update replaces the body and metadata of obj under its existing content key.
func (v *Vault) Update(ctx context.Context, obj *EncryptedObject, plaintext, metadata []byte) error {
	contentKey, err := v.contentKey(ctx, obj)
	if err != nil {
		return err
	}
	defer contentKey.Destroy()

	return v.UpdateContent(ctx, obj, contentKey, plaintext, metadata)
}

// Close locks the account and, if the Vault owns its session store, shuts
// the store down.
func (v *Vault) Close() {
	v.custody.Shutdown()
	if v.ownsStore {
		v.store.Shutdown()
	}
	v.logger.Debug("vault closed")
}

func (v *Vault) contentKey(ctx context.Context, obj *EncryptedObject) (*SecretBytes, error) {
	var contentKey *SecretBytes
	err := v.custody.WithPrivateKey(func(privateKey []byte) error {
		var err error
		contentKey, err = v.UnwrapContentKey(ctx, obj, v.accountID, privateKey)
		return err
	})
	return contentKey, err
}
