// Package store provides the durable record store behind the vault.
//
// Three logical tables are kept:
//   - vault metadata: a single row holding the exists flag, the master
//     password hash and the sealed keyfile marker
//   - credentials: one row per site, secrets stored as ciphertext only
//   - last failure: a single timestamp used by the login lockout
//
// Two backends implement Store: SQLite (default) and bbolt. Both serialise
// their own writes, and every single-row write is a full overwrite inside one
// transaction.
package store

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrAlreadyExists   = errors.New("store: credential already exists")
	ErrNotFound        = errors.New("store: credential not found")
	ErrInvalidMetadata = errors.New("store: metadata violates exists/hash/marker invariant")
	ErrEmptySite       = errors.New("store: site must not be empty")
	ErrUnknownBackend  = errors.New("store: unknown backend")
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// VaultMetadata is the singleton vault record.
// MasterHash and EncryptedMarker are both empty iff Exists is false.
type VaultMetadata struct {
	Exists          bool
	MasterHash      string
	EncryptedMarker []byte
}

// Validate checks the exists/hash/marker invariant.
func (m VaultMetadata) Validate() error {
	hasHash := m.MasterHash != ""
	hasMarker := len(m.EncryptedMarker) > 0
	if m.Exists != hasHash || m.Exists != hasMarker {
		return ErrInvalidMetadata
	}
	return nil
}

// Credential is one stored site entry. Secret is always ciphertext.
type Credential struct {
	Site      string
	Username  string
	Secret    []byte
	CreatedAt time.Time
}

// Store is the record store consumed by the vault.
type Store interface {
	GetVaultMetadata() (VaultMetadata, error)
	SetVaultMetadata(meta VaultMetadata) error

	CredentialExists(site string) (bool, error)
	InsertCredential(cred Credential) error
	GetCredential(site string) (Credential, error)
	DeleteCredential(site string) error
	ListSites() ([]string, error)

	GetLastFailure() (time.Time, error)
	SetLastFailure(t time.Time) error

	// Reset empties the store: metadata back to not-existing, all
	// credentials removed, last failure set to lastFailure.
	Reset(lastFailure time.Time) error

	Close() error
}

// Open opens the store for backend at path, creating it on first use.
// A newly created store records initialLastFailure as the last failure.
func Open(backend, path string, initialLastFailure time.Time) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		return OpenSQLite(path, initialLastFailure)
	case BackendBolt:
		return OpenBolt(path, initialLastFailure)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
