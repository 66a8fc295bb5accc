package backup

import "errors"

// Backup/Restore errors
var (
	// ErrInvalidMagic indicates the file is not an spm backup.
	ErrInvalidMagic = errors.New("invalid backup file: magic number mismatch")

	// ErrUnsupportedVersion indicates the backup format version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported backup format version")

	// ErrIntegrityFailed indicates the HMAC verification failed. A backup
	// written under a different keyfile fails here too.
	ErrIntegrityFailed = errors.New("backup integrity check failed: HMAC mismatch")

	// ErrDecryptionFailed indicates the payload could not be decrypted.
	ErrDecryptionFailed = errors.New("backup decryption failed: corrupted data")

	// ErrTruncated indicates the file ended before the trailing HMAC.
	ErrTruncated = errors.New("backup file is truncated")

	// ErrEmptyKeyfile indicates no keyfile bytes were supplied.
	ErrEmptyKeyfile = errors.New("keyfile cannot be empty")

	// ErrNoVault indicates the store holds no vault to back up.
	ErrNoVault = errors.New("no vault to back up")
)

// ErrPartialRestore indicates Apply failed after the store was reset.
// The store is left empty rather than half-populated.
var ErrPartialRestore = errors.New("restore failed partway: store was reset")

// ErrInvalidSnapshot indicates an authenticated payload that still cannot
// be a vault: bad metadata, a missing site or a duplicate site.
var ErrInvalidSnapshot = errors.New("backup does not contain a valid vault")
