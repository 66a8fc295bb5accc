// Package backup writes and reads keyfile-bound vault backups.
//
// File layout:
//
//	magic (8) || header length (4) || header JSON
//	|| ciphertext length (4) || ciphertext || HMAC-SHA256 (32)
//
// The HMAC covers everything before it. Ciphertext is AES-256-GCM over the
// JSON snapshot. Both keys come from HKDF over the keyfile, so the master
// password is never needed to back up and a backup is useless without the
// keyfile that wrote it. The keyfile itself is never written into a backup.
package backup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mg2305/Secure-Password-Manager/pkg/crypto"
	"github.com/mg2305/Secure-Password-Manager/pkg/store"
)

// maxBackupSize bounds how much Read will buffer.
const maxBackupSize = 512 * 1024 * 1024

// VerifyResult describes a backup that passed every integrity check.
type VerifyResult struct {
	Version         int
	CreatedAt       time.Time
	CredentialCount int
}

// Capture copies the vault metadata and every credential out of st, in
// list order. Secrets are copied as stored ciphertext.
func Capture(st store.Store) (*Snapshot, error) {
	meta, err := st.GetVaultMetadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read vault metadata: %w", err)
	}
	if !meta.Exists {
		return nil, ErrNoVault
	}

	sites, err := st.ListSites()
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	snap := &Snapshot{
		Metadata: Metadata{
			Exists:          meta.Exists,
			MasterHash:      meta.MasterHash,
			EncryptedMarker: meta.EncryptedMarker,
		},
		Credentials: make([]Credential, 0, len(sites)),
	}
	for _, site := range sites {
		c, err := st.GetCredential(site)
		if err != nil {
			return nil, fmt.Errorf("failed to read credential %q: %w", site, err)
		}
		snap.Credentials = append(snap.Credentials, Credential{
			Site:      c.Site,
			Username:  c.Username,
			Secret:    c.Secret,
			CreatedAt: c.CreatedAt,
		})
	}
	return snap, nil
}

// Write encrypts snap under keys derived from kf and writes a complete
// backup to w.
func Write(w io.Writer, kf []byte, snap *Snapshot, now time.Time) error {
	if snap == nil {
		return ErrNoVault
	}
	encKey, macKey, err := DeriveBackupKeys(kf)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	payload, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(payload)

	ciphertext, err := EncryptPayload(payload, encKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	header := &Header{
		Version:         FormatVersion,
		CreatedAt:       now.UTC(),
		CredentialCount: len(snap.Credentials),
		ChecksumAlgo:    "sha256",
	}

	// Buffer first so the HMAC covers exactly the bytes written
	var buf bytes.Buffer
	if err := WriteHeader(&buf, header); err != nil {
		return err
	}
	if err := writeUint32(&buf, uint32(len(ciphertext))); err != nil {
		return err
	}
	buf.Write(ciphertext)

	mac := ComputeHMAC(buf.Bytes(), macKey)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if _, err := w.Write(mac); err != nil {
		return fmt.Errorf("failed to write HMAC: %w", err)
	}
	return nil
}

// Read authenticates and decrypts a backup written by Write.
func Read(r io.Reader, kf []byte) (*Header, *Snapshot, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBackupSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read backup: %w", err)
	}
	if len(data) > maxBackupSize {
		return nil, nil, fmt.Errorf("backup exceeds %d bytes", maxBackupSize)
	}
	return verifyAndDecrypt(data, kf)
}

// Verify checks a backup's integrity without returning its contents.
func Verify(r io.Reader, kf []byte) (*VerifyResult, error) {
	header, _, err := Read(r, kf)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		Version:         header.Version,
		CreatedAt:       header.CreatedAt,
		CredentialCount: header.CredentialCount,
	}, nil
}

func verifyAndDecrypt(data, kf []byte) (*Header, *Snapshot, error) {
	rd := bytes.NewReader(data)
	header, err := ReadHeader(rd)
	if err != nil {
		return nil, nil, err
	}

	ctLen, err := readUint32(rd)
	if err != nil {
		return nil, nil, ErrTruncated
	}
	if int64(ctLen)+HMACLength != int64(rd.Len()) {
		if int64(ctLen)+HMACLength > int64(rd.Len()) {
			return nil, nil, ErrTruncated
		}
		return nil, nil, ErrIntegrityFailed
	}

	body := data[:len(data)-HMACLength]
	mac := data[len(data)-HMACLength:]
	ciphertext := body[len(body)-int(ctLen):]

	encKey, macKey, err := DeriveBackupKeys(kf)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	// Authenticate before decrypting or trusting any field
	if !VerifyHMAC(body, mac, macKey) {
		return nil, nil, ErrIntegrityFailed
	}

	plaintext, err := DecryptPayload(ciphertext, encKey)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(plaintext)

	snap, err := DecodeSnapshot(plaintext)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if err := snap.validate(); err != nil {
		return nil, nil, err
	}
	if len(snap.Credentials) != header.CredentialCount {
		return nil, nil, fmt.Errorf("%w: header lists %d credentials, payload has %d",
			ErrInvalidSnapshot, header.CredentialCount, len(snap.Credentials))
	}
	return header, snap, nil
}

func (s *Snapshot) validate() error {
	meta := store.VaultMetadata{
		Exists:          s.Metadata.Exists,
		MasterHash:      s.Metadata.MasterHash,
		EncryptedMarker: s.Metadata.EncryptedMarker,
	}
	if !meta.Exists {
		return fmt.Errorf("%w: no vault metadata", ErrInvalidSnapshot)
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	seen := make(map[string]bool, len(s.Credentials))
	for _, c := range s.Credentials {
		if c.Site == "" {
			return fmt.Errorf("%w: empty site", ErrInvalidSnapshot)
		}
		if seen[c.Site] {
			return fmt.Errorf("%w: duplicate site %q", ErrInvalidSnapshot, c.Site)
		}
		seen[c.Site] = true
	}
	return nil
}

// Apply replaces the contents of st with snap. The store is reset first,
// then the metadata row is written, then each credential. If any write
// fails the store is reset again and ErrPartialRestore is returned.
func Apply(st store.Store, snap *Snapshot, lastFailure time.Time) error {
	if err := snap.validate(); err != nil {
		return err
	}
	if err := st.Reset(lastFailure); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}

	err := st.SetVaultMetadata(store.VaultMetadata{
		Exists:          snap.Metadata.Exists,
		MasterHash:      snap.Metadata.MasterHash,
		EncryptedMarker: snap.Metadata.EncryptedMarker,
	})
	for i := 0; err == nil && i < len(snap.Credentials); i++ {
		c := snap.Credentials[i]
		err = st.InsertCredential(store.Credential{
			Site:      c.Site,
			Username:  c.Username,
			Secret:    c.Secret,
			CreatedAt: c.CreatedAt,
		})
	}
	if err == nil {
		return nil
	}

	if rerr := st.Reset(lastFailure); rerr != nil {
		return fmt.Errorf("%w: %v (reset also failed: %v)", ErrPartialRestore, err, rerr)
	}
	return fmt.Errorf("%w: %v", ErrPartialRestore, err)
}

// IsKeyfileMismatch reports whether err means the backup was written under
// a different keyfile (or altered, which cannot be told apart).
func IsKeyfileMismatch(err error) bool {
	return errors.Is(err, ErrIntegrityFailed)
}
