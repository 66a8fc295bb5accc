package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mg2305/Secure-Password-Manager/pkg/vault"
)

var errLoginAborted = errors.New("login aborted")

// openCmd logs in and starts an interactive session
var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Log in and manage credentials interactively",
	Long: `Log in with the master password and start an interactive session.

The session logs out automatically after 30 seconds without input. Five
wrong passwords in a row lock the vault for five minutes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		p := newPrompter(os.Stdin, out)
		defer p.saveTerminal()()

		s, err := login(v, p, out)
		if err != nil {
			return err
		}

		sh := newShell(v, s, p, out, newClipboardGuard(systemClipboard{}, cfg.ClipboardClear, logger))
		return sh.run()
	},
}

// errInvalidLogin does not say which factor failed.
var errInvalidLogin = errors.New("invalid login")

// login prompts until the password is accepted or the outcome is final.
func login(v *vault.Vault, p *prompter, out io.Writer) (*vault.Session, error) {
	for {
		password, err := p.password("Enter master password: ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errLoginAborted
			}
			return nil, err
		}

		outcome := v.AttemptLogin(password)
		switch outcome.Kind {
		case vault.LoginSuccess:
			fmt.Fprintln(out, "Vault unlocked.")
			return outcome.Session, nil
		case vault.LoginWrongPassword:
			fmt.Fprintf(out, "Invalid login. %d %s left.\n", outcome.AttemptsLeft, plural(outcome.AttemptsLeft, "attempt", "attempts"))
		case vault.LoginLockedOut:
			return nil, fmt.Errorf("too many failed attempts; try again in %d seconds", outcome.RemainingSeconds())
		case vault.LoginKeyfileInvalid:
			return nil, errInvalidLogin
		case vault.LoginNoVault:
			return nil, fmt.Errorf("no vault found; run 'spm init' first")
		default:
			return nil, fmt.Errorf("login failed: %w", outcome.Err)
		}
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
