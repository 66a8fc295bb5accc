package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/mg2305/Secure-Password-Manager/internal/cli"
	"github.com/mg2305/Secure-Password-Manager/pkg/crypto"
	"github.com/mg2305/Secure-Password-Manager/pkg/security"
	"github.com/mg2305/Secure-Password-Manager/pkg/vault"
)

var errExpired = errors.New("session expired")

const shellHelp = `Commands:
  add [--generate] [site]   store a credential
  get [site]                copy a password to the clipboard
  delete [site]             remove a credential
  list [pattern]            list stored sites, optionally filtered
  generate                  print a random password
  logout                    end the session
  help                      show this help`

// shell is the interactive session loop. Every answered prompt counts as
// activity; an expiry while waiting for input ends the loop.
type shell struct {
	vault   *vault.Vault
	session *vault.Session
	p       *prompter
	out     io.Writer
	clip    *clipboardGuard

	generate func() (string, error)
}

func newShell(v *vault.Vault, s *vault.Session, p *prompter, out io.Writer, clip *clipboardGuard) *shell {
	return &shell{
		vault:   v,
		session: s,
		p:       p,
		out:     out,
		clip:    clip,
		generate: func() (string, error) {
			return security.GeneratePassword(security.DefaultOptions())
		},
	}
}

func (sh *shell) run() error {
	fmt.Fprintln(sh.out, "Type 'help' for a list of commands.")
	for {
		line, err := sh.ask(func() (string, error) { return sh.p.line("spm> ") })
		switch {
		case errors.Is(err, errExpired):
			sh.expire()
			return nil
		case errors.Is(err, io.EOF):
			sh.logout()
			return nil
		case err != nil:
			sh.logout()
			return err
		}

		done, err := sh.dispatch(line)
		switch {
		case errors.Is(err, errExpired), errors.Is(err, vault.ErrSessionExpired):
			sh.expire()
			return nil
		case errors.Is(err, io.EOF):
			sh.logout()
			return nil
		case err != nil:
			fmt.Fprintf(sh.out, "Error: %s\n", describe(err))
		}
		if done {
			return nil
		}
	}
}

// ask runs read in the background so that an expiry is noticed while the
// user is idle at a prompt.
func (sh *shell) ask(read func() (string, error)) (string, error) {
	if sh.session.State() == vault.SessionExpired {
		return "", errExpired
	}

	type result struct {
		s   string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := read()
		ch <- result{s, err}
	}()

	select {
	case r := <-ch:
		if r.err == nil {
			sh.vault.RecordActivity(sh.session)
		}
		return r.s, r.err
	case <-sh.session.Expired():
		return "", errExpired
	}
}

func (sh *shell) dispatch(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprintln(sh.out, shellHelp)
	case "add":
		return false, sh.add(args)
	case "get":
		return false, sh.get(args)
	case "delete", "rm":
		return false, sh.remove(args)
	case "list", "ls":
		return false, sh.list(args)
	case "generate":
		pw, err := sh.generate()
		if err != nil {
			return false, err
		}
		fmt.Fprintln(sh.out, pw)
	case "logout", "exit", "quit":
		ok, err := sh.confirm("Log out?")
		if err != nil {
			return false, err
		}
		if ok {
			sh.logout()
			return true, nil
		}
	default:
		fmt.Fprintf(sh.out, "Unknown command %q. Type 'help' for a list of commands.\n", cmd)
	}
	return false, nil
}

func (sh *shell) confirm(prompt string) (bool, error) {
	answer, err := sh.ask(func() (string, error) { return sh.p.line(prompt + " [y/N]: ") })
	if err != nil {
		return false, err
	}
	return isYes(answer), nil
}

func (sh *shell) siteArg(args []string) (string, error) {
	if site := strings.Join(args, " "); site != "" {
		return site, nil
	}
	return sh.ask(func() (string, error) { return sh.p.line("Site: ") })
}

func (sh *shell) add(args []string) error {
	generate := false
	var rest []string
	for _, a := range args {
		if a == "-g" || a == "--generate" {
			generate = true
			continue
		}
		rest = append(rest, a)
	}

	site, err := sh.siteArg(rest)
	if err != nil {
		return err
	}
	username, err := sh.ask(func() (string, error) { return sh.p.line("Username (optional): ") })
	if err != nil {
		return err
	}

	var secret string
	if !generate {
		secret, err = sh.ask(func() (string, error) { return sh.p.password("Password (empty to generate): ") })
		if err != nil {
			return err
		}
		generate = secret == ""
	}
	if generate {
		if secret, err = sh.generate(); err != nil {
			return err
		}
	}

	if err := sh.vault.SaveCredential(sh.session, site, username, secret); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Saved credential for %s.\n", strings.TrimSpace(site))

	if generate {
		sh.copy(secret, "Generated password")
	}
	return nil
}

func (sh *shell) get(args []string) error {
	site, err := sh.siteArg(args)
	if err != nil {
		return err
	}
	entry, err := sh.vault.RetrieveCredential(sh.session, site)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(entry.Secret)

	secret := string(entry.Secret)
	fmt.Fprintf(sh.out, "Site:     %s\n", entry.Site)
	if entry.Username != "" {
		fmt.Fprintf(sh.out, "Username: %s\n", entry.Username)
	}
	fmt.Fprintf(sh.out, "Password: %s\n", mask(secret))
	sh.copy(secret, "Password")
	return nil
}

func (sh *shell) remove(args []string) error {
	site, err := sh.siteArg(args)
	if err != nil {
		return err
	}
	ok, err := sh.confirm(fmt.Sprintf("Delete credential for %s?", strings.TrimSpace(site)))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(sh.out, "Cancelled.")
		return nil
	}
	if err := sh.vault.DeleteCredential(sh.session, site); err != nil {
		return err
	}
	fmt.Fprintln(sh.out, "Deleted.")
	return nil
}

func (sh *shell) list(args []string) error {
	sites, err := sh.vault.ListSites(sh.session)
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		fmt.Fprintln(sh.out, "No credentials stored.")
		return nil
	}
	if len(args) > 0 {
		sites, err = cli.MatchAny(args, sites)
		if err != nil {
			return err
		}
		if len(sites) == 0 {
			fmt.Fprintln(sh.out, "No sites match.")
			return nil
		}
	}
	for _, site := range sites {
		fmt.Fprintf(sh.out, "  %s\n", site)
	}
	fmt.Fprintf(sh.out, "%d %s\n", len(sites), plural(len(sites), "site", "sites"))
	return nil
}

func (sh *shell) copy(secret, what string) {
	if err := sh.clip.Copy(secret); err != nil {
		sh.clip.log.Warn("failed to copy to clipboard", "err", err)
		fmt.Fprintln(sh.out, "Clipboard unavailable; nothing was copied.")
		return
	}
	if sh.clip.after > 0 {
		fmt.Fprintf(sh.out, "%s copied to clipboard (cleared in %s).\n", what, sh.clip.after)
	} else {
		fmt.Fprintf(sh.out, "%s copied to clipboard.\n", what)
	}
}

func (sh *shell) logout() {
	sh.vault.Logout(sh.session, false)
	sh.clip.Clear()
	fmt.Fprintln(sh.out, "Logged out.")
}

// expire ends the session after inactivity without asking for confirmation.
func (sh *shell) expire() {
	sh.vault.Logout(sh.session, true)
	sh.clip.Clear()
	fmt.Fprintf(sh.out, "\nSession expired after %s of inactivity. You have been logged out.\n", vault.InactivityTimeout)
}

func mask(secret string) string {
	return strings.Repeat("*", utf8.RuneCountInString(secret))
}

// describe maps vault errors to short user-facing messages.
func describe(err error) string {
	switch {
	case errors.Is(err, vault.ErrCredentialExists):
		return "a credential for that site already exists"
	case errors.Is(err, vault.ErrCredentialNotFound):
		return "no credential stored for that site"
	case errors.Is(err, vault.ErrSiteEmpty):
		return "site cannot be empty"
	case errors.Is(err, vault.ErrSiteTooLong):
		return fmt.Sprintf("site name is longer than %d characters", vault.MaxSiteLength)
	case errors.Is(err, vault.ErrUsernameTooLong):
		return fmt.Sprintf("username is longer than %d characters", vault.MaxUsernameLength)
	case errors.Is(err, vault.ErrSecretEmpty):
		return "password cannot be empty"
	case errors.Is(err, vault.ErrSecretTooLarge):
		return "password is too large"
	case errors.Is(err, vault.ErrCredentialCorrupted):
		return "stored credential could not be decrypted"
	case errors.Is(err, vault.ErrInsufficientDisk):
		return "not enough disk space to save"
	default:
		return err.Error()
	}
}
