package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mg2305/Secure-Password-Manager/pkg/security"
	"github.com/mg2305/Secure-Password-Manager/pkg/vault"
)

// initCmd creates a new vault
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new vault and keyfile",
	Long: `Create a new vault. A random keyfile is written to the configured
keyfile path; both the master password and the keyfile are needed to open
the vault later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(os.Stdin, cmd.OutOrStdout())
		defer p.saveTerminal()()
		return runInit(v, p, cmd.OutOrStdout(), cfg.Keyfile)
	},
}

func runInit(v *vault.Vault, p *prompter, out io.Writer, keyfilePath string) error {
	exists, err := v.Exists()
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("a vault already exists; run 'spm destroy' first to replace it")
	}

	fmt.Fprintln(out, "Creating new vault...")

	password, err := p.password("Enter master password: ")
	if err != nil {
		return err
	}
	confirm, err := p.password("Confirm master password: ")
	if err != nil {
		return err
	}

	// Advisory only
	strength := security.Strength(password)
	if password != "" && strength < security.PasswordGood {
		fmt.Fprintf(out, "Warning: password strength is %s; consider a longer passphrase\n", strength)
	}

	if err := v.SignUp(password, confirm); err != nil {
		switch {
		case errors.Is(err, vault.ErrPasswordMismatch):
			return fmt.Errorf("passwords do not match")
		case errors.Is(err, vault.ErrEmptyPassword):
			return fmt.Errorf("master password cannot be empty")
		case errors.Is(err, vault.ErrKeyfileIO):
			return fmt.Errorf("failed to write keyfile %s: %w", keyfilePath, err)
		default:
			return fmt.Errorf("failed to create vault: %w", err)
		}
	}

	fmt.Fprintln(out, "Vault created.")
	fmt.Fprintf(out, "Keyfile written to %s. Keep it safe: the vault cannot be opened without it.\n", keyfilePath)
	return nil
}
