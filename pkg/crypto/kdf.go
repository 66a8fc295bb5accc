package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// VaultSalt is the fixed application salt for vault key derivation.
// Changing it makes every existing vault unreadable.
const VaultSalt = "securePasswordManager"

// Argon2Params are the cost parameters of an Argon2id invocation.
type Argon2Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// VaultKDF holds the vault key derivation costs: 3 iterations, 64 MiB,
// a single lane and a 32-byte key. Tests may lower it; production code must not.
var VaultKDF = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 1,
	KeyLen:  KeyLength,
}

// DeriveVaultKey derives the 32-byte session key from the master password
// and the full keyfile contents.
//
// The input is password || keyfile, hashed with Argon2id under VaultSalt.
// Identical inputs always yield the identical key, which is what allows the
// key to be re-derived at every login instead of being stored.
func DeriveVaultKey(password, keyfile []byte) ([]byte, error) {
	if len(keyfile) == 0 {
		return nil, fmt.Errorf("%w: empty keyfile", ErrKeyDerivation)
	}
	if VaultKDF.KeyLen != KeyLength || VaultKDF.Time == 0 || VaultKDF.Threads == 0 {
		return nil, fmt.Errorf("%w: invalid parameters", ErrKeyDerivation)
	}

	secret := make([]byte, 0, len(password)+len(keyfile))
	secret = append(secret, password...)
	secret = append(secret, keyfile...)
	defer SecureWipe(secret)

	return argon2.IDKey(secret, []byte(VaultSalt), VaultKDF.Time, VaultKDF.Memory, VaultKDF.Threads, VaultKDF.KeyLen), nil
}
