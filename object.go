package seravault

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/seravault/client-go/internal/crypto"
)

// EncryptedObject is the storage-ready form of one encrypted item.
//
// Content and EncryptedMetadata are nonce || AES-GCM ciphertext under the
// object's content key. Each recipient's entry in the key map is a key-wrap
// blob: nonce || ML-KEM ciphertext || sealed content key. Removing an entry
// revokes that recipient without touching the body.
//
// An EncryptedObject is safe for concurrent use; a Decrypt that starts after
// a ShareWith or Unshare has returned observes its effect.
type EncryptedObject struct {
	StoragePath       string
	Content           []byte
	EncryptedMetadata []byte

	mu            sync.RWMutex
	encryptedKeys map[string][]byte
}

// NewEncryptedObject assembles an object from stored parts. The key map is
// copied.
func NewEncryptedObject(storagePath string, content, metadata []byte, encryptedKeys map[string][]byte) *EncryptedObject {
	keys := make(map[string][]byte, len(encryptedKeys))
	for id, blob := range encryptedKeys {
		keys[id] = blob
	}
	return &EncryptedObject{
		StoragePath:       storagePath,
		Content:           content,
		EncryptedMetadata: metadata,
		encryptedKeys:     keys,
	}
}

// Recipients returns the ids that hold a key-wrap entry, sorted.
func (o *EncryptedObject) Recipients() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	ids := make([]string, 0, len(o.encryptedKeys))
	for id := range o.encryptedKeys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasRecipient reports whether id holds a key-wrap entry.
func (o *EncryptedObject) HasRecipient(id string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.encryptedKeys[id]
	return ok
}

// KeyWrap returns the key-wrap blob for id.
func (o *EncryptedObject) KeyWrap(id string) ([]byte, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	blob, ok := o.encryptedKeys[id]
	return blob, ok
}

// EncryptedKeys returns a copy of the recipient key map.
func (o *EncryptedObject) EncryptedKeys() map[string][]byte {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[string][]byte, len(o.encryptedKeys))
	for id, blob := range o.encryptedKeys {
		out[id] = blob
	}
	return out
}

func (o *EncryptedObject) mergeKeys(entries map[string][]byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.encryptedKeys == nil {
		o.encryptedKeys = make(map[string][]byte, len(entries))
	}
	for id, blob := range entries {
		o.encryptedKeys[id] = blob
	}
}

func (o *EncryptedObject) removeKeys(ids []string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if _, ok := o.encryptedKeys[id]; ok {
			delete(o.encryptedKeys, id)
			removed++
		}
	}
	return removed
}

// replaceBody swaps the body and, when keys is non-nil, the entire key map
// under one lock so readers never see a new body with old keys.
func (o *EncryptedObject) replaceBody(content, metadata []byte, keys map[string][]byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Content = content
	o.EncryptedMetadata = metadata
	if keys != nil {
		o.encryptedKeys = keys
	}
}

// view returns the body together with id's key-wrap blob, all read under
// one lock.
func (o *EncryptedObject) view(id string) (content, metadata, blob []byte, ok bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	blob, ok = o.encryptedKeys[id]
	return o.Content, o.EncryptedMetadata, blob, ok
}

// encryptedObjectJSON is the storage representation. Binary fields are
// URL-safe base64 without padding.
type encryptedObjectJSON struct {
	StoragePath       string            `json:"storagePath"`
	Content           string            `json:"content"`
	EncryptedMetadata string            `json:"encryptedMetadata"`
	EncryptedKeys     map[string]string `json:"encryptedKeys"`
}

// MarshalJSON implements json.Marshaler.
func (o *EncryptedObject) MarshalJSON() ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := encryptedObjectJSON{
		StoragePath:       o.StoragePath,
		Content:           crypto.ToBase64URL(o.Content),
		EncryptedMetadata: crypto.ToBase64URL(o.EncryptedMetadata),
		EncryptedKeys:     make(map[string]string, len(o.encryptedKeys)),
	}
	for id, blob := range o.encryptedKeys {
		out.EncryptedKeys[id] = crypto.ToBase64URL(blob)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *EncryptedObject) UnmarshalJSON(data []byte) error {
	var in encryptedObjectJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	content, err := crypto.DecodeBase64(in.Content)
	if err != nil {
		return fmt.Errorf("decode content: %w", err)
	}
	metadata, err := crypto.DecodeBase64(in.EncryptedMetadata)
	if err != nil {
		return fmt.Errorf("decode encryptedMetadata: %w", err)
	}

	keys := make(map[string][]byte, len(in.EncryptedKeys))
	for id, encoded := range in.EncryptedKeys {
		blob, err := crypto.DecodeBase64(encoded)
		if err != nil {
			return fmt.Errorf("decode key for %q: %w", id, err)
		}
		keys[id] = blob
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.StoragePath = in.StoragePath
	o.Content = content
	o.EncryptedMetadata = metadata
	o.encryptedKeys = keys
	return nil
}
