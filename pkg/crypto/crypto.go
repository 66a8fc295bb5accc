// Package crypto provides the cryptographic primitives for spm.
//
// # Security Features
//
//   - AES-256-GCM authenticated envelope encryption (nonce || ciphertext || tag)
//   - Argon2id master password hashing with a fresh random salt per hash
//   - Argon2id vault key derivation over password || keyfile (fixed salt)
//   - Keyfile integrity marker sealed directly under the raw keyfile bytes
//   - Secure memory wiping and page locking for sensitive data
//
// # Example Usage
//
//	// Hash a master password for storage
//	encoded, err := crypto.HashPassword("password")
//
//	// Derive the session key at login
//	key, err := crypto.DeriveVaultKey([]byte("password"), keyfileBytes)
//
//	// Encrypt and decrypt a secret
//	blob, err := crypto.Encrypt(key, []byte("secret"))
//	plaintext, err := crypto.Decrypt(key, blob)
//
//	// Securely wipe the key
//	crypto.SecureWipe(key)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"
)

const (
	// KeyLength is the length of encryption keys in bytes (256 bits).
	KeyLength = 32

	// NonceLength is the length of GCM nonces in bytes (96 bits).
	NonceLength = 12

	// TagLength is the length of the GCM authentication tag in bytes.
	TagLength = 16

	// Overhead is the number of bytes Encrypt adds to a plaintext.
	Overhead = NonceLength + TagLength
)

// Sentinel errors returned by crypto functions.
var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrDecryptionFailed indicates decryption or authentication tag verification failed.
	ErrDecryptionFailed = errors.New("crypto: decryption failed, authentication tag verification failed")

	// ErrCiphertextTooShort indicates the blob cannot hold a nonce and a tag.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")

	// ErrKeyDerivation indicates the vault key could not be derived.
	ErrKeyDerivation = errors.New("crypto: key derivation failed")
)

// Encrypt encrypts plaintext using AES-256-GCM authenticated encryption.
//
// A fresh 12-byte nonce is drawn from crypto/rand for every call and
// prepended to the output, so the returned blob is self-contained:
//
//	nonce (12) || ciphertext || tag (16)
//
// Returns ErrInvalidKeyLength if key is not 32 bytes.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceLength, NonceLength+len(plaintext)+gcm.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	// Seal appends ciphertext and tag after the nonce
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt.
//
// Any failure to authenticate the blob (wrong key, truncation, tampering) is
// reported as ErrDecryptionFailed or ErrCiphertextTooShort; the plaintext is
// never partially returned.
func Decrypt(key, blob []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(blob) < NonceLength+gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	nonce := blob[:NonceLength]
	ciphertext := blob[NonceLength:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}
	return gcm, nil
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// runtime.KeepAlive keeps b reachable until after the loop
	runtime.KeepAlive(b)
}

// GenerateRandom returns n bytes from crypto/rand.
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate random bytes: %w", err)
	}
	return b, nil
}
