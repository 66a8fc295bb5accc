package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mg2305/Secure-Password-Manager/pkg/backup"
	"github.com/mg2305/Secure-Password-Manager/pkg/crypto"
	"github.com/mg2305/Secure-Password-Manager/pkg/keyfile"
	"github.com/mg2305/Secure-Password-Manager/pkg/vault"
)

var (
	backupOutput string
	backupStdout bool
	backupForce  bool

	restoreForce      bool
	restoreVerifyOnly bool
)

func init() {
	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "Output file path")
	backupCmd.Flags().BoolVar(&backupStdout, "stdout", false, "Write the backup to stdout (for piping)")
	backupCmd.Flags().BoolVarP(&backupForce, "force", "f", false, "Overwrite an existing file")

	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "Replace an existing vault without asking")
	restoreCmd.Flags().BoolVar(&restoreVerifyOnly, "verify-only", false, "Only verify backup integrity")
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write an encrypted backup of the vault",
	Long: `Write an encrypted backup of the vault.

The backup is sealed with keys derived from the keyfile. It does not contain
the keyfile, so keep a copy of the keyfile somewhere safe as well: without it
the backup cannot be restored.

Examples:
  spm backup -o vault.spmbak
  spm backup --stdout | gpg --encrypt > vault.spmbak.gpg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateBackupFlags(); err != nil {
			return err
		}
		if backupStdout {
			n, err := v.Backup(cmd.OutOrStdout())
			if err != nil {
				return describeBackupError(err)
			}
			logger.Info("backup written to stdout", "credentials", n)
			return nil
		}

		n, err := writeBackupFile(v, backupOutput, backupForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s (%d %s).\n", backupOutput, n, plural(n, "credential", "credentials"))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Restore the vault from an encrypted backup",
	Long: `Restore the vault from a backup written by 'spm backup'.

The keyfile the backup was written with must be at the configured keyfile
path. After a restore, log in with the master password that was in use when
the backup was taken.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if restoreVerifyOnly {
			return runVerifyBackup(cfg.Keyfile, args[0], out)
		}
		p := newPrompter(os.Stdin, out)
		return runRestore(v, p, out, args[0], restoreForce)
	},
}

func validateBackupFlags() error {
	if !backupStdout && backupOutput == "" {
		return fmt.Errorf("either --output or --stdout is required")
	}
	if backupStdout && backupOutput != "" {
		return fmt.Errorf("--output and --stdout are mutually exclusive")
	}
	return nil
}

// writeBackupFile writes to a temporary file beside path and renames it into
// place, so a failed backup never replaces a good one.
func writeBackupFile(v *vault.Vault, path string, force bool) (int, error) {
	if !force {
		if _, err := os.Lstat(path); err == nil {
			return 0, fmt.Errorf("output file already exists: %s (use --force to overwrite)", path)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".spm-backup-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to set file permissions: %w", err)
	}

	n, err := v.Backup(tmp)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, describeBackupError(err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("failed to move backup into place: %w", err)
	}
	return n, nil
}

func runRestore(v *vault.Vault, p *prompter, out io.Writer, path string, force bool) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("backup file not found: %s", path)
		}
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	exists, err := v.Exists()
	if err != nil {
		return err
	}
	if exists && !force {
		ok, err := p.confirm("This replaces the vault and every stored credential with the backup. Continue?")
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	n, err := v.Restore(f, exists)
	if err != nil {
		return describeBackupError(err)
	}
	fmt.Fprintf(out, "Restored %d %s. Log in with the master password in use when the backup was taken.\n",
		n, plural(n, "credential", "credentials"))
	return nil
}

func runVerifyBackup(keyfilePath, path string, out io.Writer) error {
	kf, err := keyfile.Read(keyfilePath)
	if err != nil {
		return describeBackupError(fmt.Errorf("%w: %v", vault.ErrKeyfileUnreadable, err))
	}
	defer crypto.SecureWipe(kf)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	res, err := backup.Verify(f, kf)
	if err != nil {
		if backup.IsKeyfileMismatch(err) {
			err = vault.ErrBackupKeyfile
		}
		return describeBackupError(err)
	}
	fmt.Fprintf(out, "Backup verified: format v%d, created %s, %d %s\n",
		res.Version, res.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		res.CredentialCount, plural(res.CredentialCount, "credential", "credentials"))
	return nil
}

func describeBackupError(err error) error {
	switch {
	case errors.Is(err, vault.ErrNoVault):
		return fmt.Errorf("no vault found; run 'spm init' first")
	case errors.Is(err, vault.ErrKeyfileUnreadable):
		return fmt.Errorf("keyfile could not be read; backup and restore need the vault's keyfile")
	case errors.Is(err, vault.ErrBackupKeyfile):
		return fmt.Errorf("backup was written with a different keyfile or has been modified")
	case errors.Is(err, vault.ErrVaultExists):
		return fmt.Errorf("a vault already exists; use --force to replace it")
	case errors.Is(err, vault.ErrSessionActive):
		return fmt.Errorf("cannot restore while a session is active")
	case errors.Is(err, backup.ErrInvalidMagic):
		return fmt.Errorf("not an spm backup file")
	case errors.Is(err, backup.ErrUnsupportedVersion), errors.Is(err, backup.ErrTruncated),
		errors.Is(err, backup.ErrInvalidSnapshot):
		return fmt.Errorf("backup cannot be used: %w", err)
	}
	return err
}
