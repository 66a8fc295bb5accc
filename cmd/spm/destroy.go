package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mg2305/Secure-Password-Manager/pkg/vault"
)

var destroyForce bool

func init() {
	destroyCmd.Flags().BoolVarP(&destroyForce, "force", "f", false, "Skip confirmation prompt")
}

// destroyCmd deletes the vault and its keyfile
var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Delete the vault, all credentials and the keyfile",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(os.Stdin, cmd.OutOrStdout())
		return runDestroy(v, p, cmd.OutOrStdout(), destroyForce)
	},
}

func runDestroy(v *vault.Vault, p *prompter, out io.Writer, force bool) error {
	exists, err := v.Exists()
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("no vault found")
	}

	if !force {
		ok, err := p.confirm("This permanently deletes every stored credential and the keyfile. Continue?")
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := v.DeleteVault(); err != nil {
		if errors.Is(err, vault.ErrNoVault) {
			return fmt.Errorf("no vault found")
		}
		return fmt.Errorf("failed to delete vault: %w", err)
	}
	fmt.Fprintln(out, "Vault deleted. Run 'spm init' to create a new one.")
	return nil
}
