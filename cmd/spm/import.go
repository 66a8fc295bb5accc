package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mg2305/Secure-Password-Manager/internal/cli"
	"github.com/mg2305/Secure-Password-Manager/pkg/importer"
	"github.com/mg2305/Secure-Password-Manager/pkg/vault"
)

// maxImportFileSize bounds how much of an export file is read.
const maxImportFileSize = 50 * 1024 * 1024

var (
	importFrom   string
	importDryRun bool
	importSites  []string
)

func init() {
	importCmd.Flags().StringVar(&importFrom, "from", "", "Export format: "+strings.Join(importer.ValidSources(), ", "))
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without changing the vault")
	importCmd.Flags().StringSliceVar(&importSites, "site", nil, "Only import sites matching this pattern (repeatable)")
	_ = importCmd.MarkFlagRequired("from")
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import logins exported from another password manager",
	Long: `Import logins from a Bitwarden JSON, 1Password CSV or LastPass CSV export.

Each login is stored under the host name of its URL, or its title when it has
no URL. Sites that already have a credential are left untouched.

Examples:
  spm import --from bitwarden bitwarden_export.json
  spm import --from lastpass lastpass.csv --dry-run
  spm import --from 1password export.csv --site '*.example.com'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readImportFile(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		p := newPrompter(os.Stdin, out)
		defer p.saveTerminal()()
		return runImport(v, p, out, cmd.ErrOrStderr(), data, importFrom, importSites, importDryRun)
	},
}

// readImportFile reads an export file, refusing symlinks and oversized files.
func readImportFile(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Lstat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to access file: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("security: refusing to read symlink: %s", abs)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxImportFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxImportFileSize)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// runImport parses data and saves every record in one session. Parse
// warnings and skipped items go to errOut.
func runImport(v *vault.Vault, p *prompter, out, errOut io.Writer, data []byte, from string, patterns []string, dryRun bool) error {
	parser, err := importer.GetParser(importer.Source(from))
	if err != nil {
		return fmt.Errorf("invalid --from value '%s': must be one of %v", from, importer.ValidSources())
	}

	result, err := parser.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse %s file: %w", parser.Source(), err)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(errOut, "Warning: %s\n", w)
	}
	for _, s := range result.Skipped {
		fmt.Fprintf(errOut, "Skipped: %s (%s)\n", s.Name, s.Reason)
	}

	records, err := filterRecords(result.Records, patterns)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No logins to import.")
		return nil
	}

	if dryRun {
		fmt.Fprintf(out, "Would import %d %s:\n", len(records), plural(len(records), "login", "logins"))
		for _, r := range records {
			if r.Username != "" {
				fmt.Fprintf(out, "  %s (%s)\n", r.Site, r.Username)
			} else {
				fmt.Fprintf(out, "  %s\n", r.Site)
			}
		}
		return nil
	}

	s, err := login(v, p, out)
	if err != nil {
		return err
	}
	defer v.Logout(s, false)

	var imported, existing, failed int
	for _, r := range records {
		err := v.SaveCredential(s, r.Site, r.Username, r.Password)
		switch {
		case err == nil:
			imported++
		case errors.Is(err, vault.ErrCredentialExists):
			existing++
			fmt.Fprintf(errOut, "Skipped: %s (already stored)\n", r.Site)
		case errors.Is(err, vault.ErrSessionExpired), errors.Is(err, vault.ErrNoSession):
			return fmt.Errorf("session ended during import after %d %s", imported, plural(imported, "login", "logins"))
		default:
			failed++
			fmt.Fprintf(errOut, "Failed: %s (%s)\n", r.Site, describe(err))
		}
		v.RecordActivity(s)
	}

	fmt.Fprintf(out, "Imported %d %s", imported, plural(imported, "login", "logins"))
	if existing > 0 {
		fmt.Fprintf(out, ", %d already stored", existing)
	}
	if failed > 0 {
		fmt.Fprintf(out, ", %d failed", failed)
	}
	fmt.Fprintln(out, ".")
	return nil
}

func filterRecords(records []*importer.Record, patterns []string) ([]*importer.Record, error) {
	if len(patterns) == 0 {
		return records, nil
	}
	sites := make([]string, len(records))
	for i, r := range records {
		sites[i] = r.Site
	}
	matched, err := cli.MatchAny(patterns, sites)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(matched))
	for _, site := range matched {
		keep[site] = true
	}
	var filtered []*importer.Record
	for _, r := range records {
		if keep[r.Site] {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}
