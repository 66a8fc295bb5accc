package crypto

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// PasswordSaltLength is the random salt size for master password hashes.
const PasswordSaltLength = 16

// maxHashMemory bounds the memory cost accepted from a stored hash (1 GiB).
const maxHashMemory = 1024 * 1024

// PasswordHashing holds the costs used by HashPassword. Verification always
// uses the parameters encoded in the stored hash.
var PasswordHashing = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
}

// ErrInvalidHash indicates a stored hash could not be parsed.
var ErrInvalidHash = errors.New("crypto: invalid password hash")

// HashPassword hashes a master password for storage.
//
// The result is a self-describing string
//
//	$argon2id$v=19$m=<KiB>,t=<iterations>,p=<threads>$<salt>$<hash>
//
// with unpadded base64 salt and hash. Every call uses a new random salt.
func HashPassword(password string) (string, error) {
	salt, err := GenerateRandom(PasswordSaltLength)
	if err != nil {
		return "", err
	}

	p := PasswordHashing
	if p.Time == 0 || p.Threads == 0 || p.Memory == 0 || p.KeyLen == 0 {
		return "", fmt.Errorf("%w: invalid password hashing parameters", ErrKeyDerivation)
	}
	hash := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	defer SecureWipe(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword reports whether password matches an encoded hash produced by
// HashPassword. Malformed hashes verify as false.
func VerifyPassword(password, encoded string) bool {
	p, salt, want, err := decodeHash(encoded)
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	defer SecureWipe(got)

	return subtle.ConstantTimeCompare(got, want) == 1
}

func decodeHash(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, ErrInvalidHash
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	if p.Time == 0 || p.Threads == 0 || p.Memory == 0 || p.Memory > maxHashMemory {
		return p, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrInvalidHash
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return p, nil, nil, ErrInvalidHash
	}
	p.KeyLen = uint32(len(hash))

	return p, salt, hash, nil
}
