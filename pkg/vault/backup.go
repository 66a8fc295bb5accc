package vault

import (
	"errors"
	"fmt"
	"io"

	"github.com/mg2305/Secure-Password-Manager/pkg/audit"
	"github.com/mg2305/Secure-Password-Manager/pkg/backup"
	"github.com/mg2305/Secure-Password-Manager/pkg/crypto"
	"github.com/mg2305/Secure-Password-Manager/pkg/keyfile"
)

// ErrBackupKeyfile is returned when a backup does not authenticate under the
// current keyfile: it was written with another keyfile or has been altered.
var ErrBackupKeyfile = errors.New("vault: backup does not match this keyfile")

// ErrKeyfileUnreadable is returned when backup or restore cannot read the keyfile.
var ErrKeyfileUnreadable = errors.New("vault: keyfile is missing or unreadable")

// Backup writes an encrypted copy of the vault to w and returns the number
// of credentials written. No session is needed: the backup is bound to the
// keyfile and carries secrets only as stored ciphertext.
func (v *Vault) Backup(w io.Writer) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	exists, err := v.Exists()
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNoVault
	}

	kf, err := v.readKeyfileForBackup()
	if err != nil {
		return 0, err
	}
	defer crypto.SecureWipe(kf)
	v.ensureAuditKey(kf)

	snap, err := backup.Capture(v.store)
	if err != nil {
		return 0, err
	}

	if err := backup.Write(w, kf, snap, v.now()); err != nil {
		v.auditError(audit.OpVaultBackup, "", "WRITE_FAILED", err.Error())
		return 0, err
	}

	v.auditSuccess(audit.OpVaultBackup, "")
	v.log.Info("vault backed up", "credentials", len(snap.Credentials))
	return len(snap.Credentials), nil
}

// Restore replaces the vault with the contents of a backup written under
// the current keyfile. An existing vault is only replaced when overwrite is
// set. Restore is refused while a session is live, and leaves the lockout
// counter cleared.
func (v *Vault) Restore(r io.Reader, overwrite bool) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session != nil {
		return 0, ErrSessionActive
	}

	kf, err := v.readKeyfileForBackup()
	if err != nil {
		return 0, err
	}
	defer crypto.SecureWipe(kf)
	v.ensureAuditKey(kf)

	_, snap, err := backup.Read(r, kf)
	if backup.IsKeyfileMismatch(err) {
		v.auditDenied(audit.OpVaultRestore, "keyfile_mismatch")
		return 0, ErrBackupKeyfile
	}
	if err != nil {
		return 0, err
	}
	if !crypto.CheckMarker(snap.Metadata.EncryptedMarker, kf, Marker) {
		v.auditDenied(audit.OpVaultRestore, "keyfile_mismatch")
		return 0, ErrBackupKeyfile
	}

	meta, err := v.store.GetVaultMetadata()
	if err != nil {
		return 0, err
	}
	if meta.Exists && !overwrite {
		return 0, ErrVaultExists
	}
	if err := v.checkDiskSpaceForWrite(backupSize(snap)); err != nil {
		return 0, err
	}

	if err := backup.Apply(v.store, snap, InitialLastFailure(v.now())); err != nil {
		v.auditError(audit.OpVaultRestore, "", "APPLY_FAILED", err.Error())
		return 0, fmt.Errorf("vault: restore failed: %w", err)
	}
	v.guard.Reset()

	v.auditSuccess(audit.OpVaultRestore, "")
	v.log.Info("vault restored", "credentials", len(snap.Credentials), "overwrite", meta.Exists)
	return len(snap.Credentials), nil
}

func (v *Vault) readKeyfileForBackup() ([]byte, error) {
	kf, err := keyfile.Read(v.keyfilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyfileUnreadable, err)
	}
	return kf, nil
}

func backupSize(snap *backup.Snapshot) int {
	n := len(snap.Metadata.MasterHash) + len(snap.Metadata.EncryptedMarker)
	for _, c := range snap.Credentials {
		n += len(c.Site) + len(c.Username) + len(c.Secret)
	}
	return n
}
