package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mg2305/Secure-Password-Manager/internal/config"
	"github.com/mg2305/Secure-Password-Manager/pkg/vault"
)

// statusCmd shows vault state without unlocking it
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault, keyfile and lockout state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(v, cfg, cmd.OutOrStdout())
	},
}

func runStatus(v *vault.Vault, cfg *config.Config, out io.Writer) error {
	st, err := v.Status()
	if err != nil {
		return fmt.Errorf("failed to read vault status: %w", err)
	}

	vaultState := "not created"
	if st.Exists {
		vaultState = "ready"
	}
	keyfileState := "missing"
	if st.KeyfilePresent {
		keyfileState = "present"
	}

	fmt.Fprintf(out, "Vault:    %s\n", vaultState)
	fmt.Fprintf(out, "Store:    %s (%s)\n", cfg.StorePath(), cfg.Store)
	fmt.Fprintf(out, "Keyfile:  %s (%s)\n", cfg.Keyfile, keyfileState)
	if st.LockoutRemaining > 0 {
		secs := vault.LoginOutcome{Remaining: st.LockoutRemaining}.RemainingSeconds()
		fmt.Fprintf(out, "Lockout:  %d seconds remaining\n", secs)
	} else {
		fmt.Fprintln(out, "Lockout:  none")
	}
	if cfg.AuditEnabled() {
		fmt.Fprintf(out, "Audit:    %s\n", cfg.AuditDir())
	} else {
		fmt.Fprintln(out, "Audit:    disabled")
	}
	return nil
}
