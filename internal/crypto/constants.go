package crypto

const (
	// MLKEMPublicKeySize is the size of an ML-KEM-768 public key in bytes.
	MLKEMPublicKeySize = 1184
	// MLKEMSecretKeySize is the size of an ML-KEM-768 secret key in bytes.
	MLKEMSecretKeySize = 2400
	// MLKEMCiphertextSize is the size of an ML-KEM-768 ciphertext in bytes.
	MLKEMCiphertextSize = 1088
	// MLKEMSharedKeySize is the size of the shared secret from ML-KEM-768 in bytes.
	MLKEMSharedKeySize = 32

	// AESKeySize is the size of an AES-256 key in bytes.
	AESKeySize = 32
	// AESNonceSize is the size of an AES-GCM nonce in bytes.
	AESNonceSize = 12
	// AESTagSize is the size of an AES-GCM authentication tag in bytes.
	AESTagSize = 16

	// ContentKeySize is the size of a per-object content key in bytes.
	ContentKeySize = AESKeySize

	// KeyWrapSize is the total size of a per-recipient key-wrap blob:
	// nonce || ML-KEM ciphertext || sealed content key.
	KeyWrapSize = AESNonceSize + MLKEMCiphertextSize + ContentKeySize + AESTagSize

	// PublicKeyOffset is the byte offset where the public key is embedded
	// within an ML-KEM-768 secret key.
	PublicKeyOffset = 1152

	// SaltSize is the size of the random salt used by both envelope formats.
	SaltSize = 16

	// LegacyNonceSize is the size of a NaCl secretbox nonce.
	LegacyNonceSize = 24
	// LegacyPBKDF2Iterations is the PBKDF2-HMAC-SHA256 iteration count of the
	// legacy private-key envelope.
	LegacyPBKDF2Iterations = 100000
)

// Default Argon2id parameters for the current private-key envelope.
const (
	DefaultArgonTime     = uint32(3)
	DefaultArgonMemoryKB = uint32(64 * 1024)
	DefaultArgonThreads  = uint8(4)
)

// KDFArgon2id names the memory-hard KDF recorded in current-format envelopes.
const KDFArgon2id = "argon2id"
