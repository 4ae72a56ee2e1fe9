// Package seravault is the client-side encryption and key-custody core of
// SeraVault.
//
// Objects are encrypted once under a random AES-256-GCM content key, and
// that key is wrapped for every recipient with ML-KEM-768. Sharing adds a
// wrapped key; unsharing removes one. The account private key is kept in a
// passphrase-sealed envelope (Argon2id + AES-256-GCM, with read support for
// the older PBKDF2 + secretbox format) and, once unlocked, lives only in a
// SessionStore that wipes it after a period of inactivity.
//
// Basic usage:
//
//	vault := seravault.New(accountID, profile)
//	defer vault.Close()
//
//	err := vault.Unlock(ctx, seravault.MethodPassphrase, seravault.Credential{
//	    Passphrase: passphrase,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	obj, err := vault.EncryptForRecipients(ctx, data, meta, map[string][]byte{
//	    accountID: myPublicKey,
//	    "bob":     bobPublicKey,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	plaintext, err := vault.Open(ctx, obj)
package seravault
