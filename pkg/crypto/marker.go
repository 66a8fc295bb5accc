package crypto

import "crypto/subtle"

// SealMarker encrypts marker under the raw keyfile bytes.
//
// The keyfile is used directly as the AES-256 key, without the password, so
// that the keyfile can be validated on its own at login. Returns false if the
// keyfile is not exactly KeyLength bytes or encryption fails.
func SealMarker(marker string, keyfile []byte) ([]byte, bool) {
	if len(keyfile) != KeyLength {
		return nil, false
	}
	blob, err := Encrypt(keyfile, []byte(marker))
	if err != nil {
		return nil, false
	}
	return blob, true
}

// CheckMarker decrypts a sealed marker with the keyfile and compares it to
// expected. Any failure, including a keyfile of the wrong length, returns false.
func CheckMarker(sealed, keyfile []byte, expected string) bool {
	if len(keyfile) != KeyLength {
		return false
	}
	plaintext, err := Decrypt(keyfile, sealed)
	if err != nil {
		return false
	}
	defer SecureWipe(plaintext)
	return subtle.ConstantTimeCompare(plaintext, []byte(expected)) == 1
}
