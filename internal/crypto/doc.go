// Package crypto provides the cryptographic primitives behind SeraVault's
// hybrid post-quantum encryption.
//
// # Algorithm Suite
//
//   - ML-KEM-768 (NIST FIPS 203): key encapsulation used to wrap each
//     object's content key for every recipient.
//
//   - AES-256-GCM: authenticated encryption of object bodies, metadata,
//     wrapped content keys and current-format private-key envelopes.
//     Every seal draws a fresh 12-byte nonce; callers never supply one.
//
//   - Argon2id: memory-hard derivation of the key that seals a user's
//     private key under their passphrase.
//
//   - PBKDF2-HMAC-SHA256 with NaCl secretbox: the legacy private-key
//     envelope. Read support only matters for accounts created before the
//     current envelope existed.
//
// # Wire Formats
//
// An AEAD envelope is nonce (12) || ciphertext || tag (16). A key-wrap blob
// is nonce (12) || ML-KEM ciphertext (1088) || sealed content key (48).
//
// # Key Material
//
// Shared secrets and derived keys are wiped with memguard as soon as the
// call that needs them returns. ML-KEM decapsulation never fails on a wrong
// secret key (implicit rejection); the failure shows up one layer later as
// [ErrDecryptionFailed] when the wrapped content key does not authenticate.
package crypto
