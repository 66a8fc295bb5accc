package backup

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/mg2305/Secure-Password-Manager/pkg/crypto"
)

const (
	// HMACLength is the length of the HMAC-SHA256 in bytes.
	HMACLength = 32

	// KeyLength is the length of derived keys in bytes (256 bits).
	KeyLength = 32
)

// HKDF info strings for key derivation.
const (
	hkdfInfoEncryption = "spm-backup-encryption-v1"
	hkdfInfoMAC        = "spm-backup-mac-v1"
)

// DeriveBackupKeys derives the encryption and MAC keys from the keyfile.
// A backup can only be opened by the keyfile that wrote it.
func DeriveBackupKeys(kf []byte) (encKey, macKey []byte, err error) {
	if len(kf) == 0 {
		return nil, nil, ErrEmptyKeyfile
	}

	encKey, err = deriveHKDF(kf, []byte(hkdfInfoEncryption))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	macKey, err = deriveHKDF(kf, []byte(hkdfInfoMAC))
	if err != nil {
		crypto.SecureWipe(encKey)
		return nil, nil, fmt.Errorf("failed to derive MAC key: %w", err)
	}

	return encKey, macKey, nil
}

// deriveHKDF derives a key using HKDF-SHA256.
func deriveHKDF(secret, info []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, info)
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncryptPayload encrypts the payload using AES-256-GCM.
func EncryptPayload(plaintext, key []byte) ([]byte, error) {
	blob, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("encryption failed: %w", err)
	}
	return blob, nil
}

// DecryptPayload reverses EncryptPayload.
func DecryptPayload(blob, key []byte) ([]byte, error) {
	plaintext, err := crypto.Decrypt(key, blob)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// ComputeHMAC computes HMAC-SHA256 over the given data.
func ComputeHMAC(data, key []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// VerifyHMAC verifies the HMAC-SHA256 of the given data.
func VerifyHMAC(data, expectedMAC, key []byte) bool {
	return hmac.Equal(ComputeHMAC(data, key), expectedMAC)
}
