package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mg2305/Secure-Password-Manager/pkg/audit"
	"github.com/mg2305/Secure-Password-Manager/pkg/crypto"
	"github.com/mg2305/Secure-Password-Manager/pkg/keyfile"
)

// Audit flags
var (
	auditLimit int
	auditSince time.Duration
	auditJSON  bool
)

var errAuditDisabled = errors.New("audit logging is disabled in the configuration")

func init() {
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)

	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum number of events to show")
	auditListCmd.Flags().DurationVar(&auditSince, "since", 0, "Show events newer than this (e.g. 24h)")
	auditVerifyCmd.Flags().BoolVar(&auditJSON, "json", false, "Print the result as JSON")
}

// auditCmd is the parent command for audit operations. The chain key comes
// from the keyfile, so no master password is needed.
var auditCmd = &cobra.Command{
	Use:         "audit",
	Short:       "Audit log operations",
	Annotations: map[string]string{"standalone": "true"},
}

// auditListCmd lists audit log entries
var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.AuditEnabled() {
			return errAuditDisabled
		}
		var since time.Time
		if auditSince > 0 {
			since = time.Now().Add(-auditSince)
		}
		return runAuditList(audit.NewLogger(cfg.AuditDir()), cmd.OutOrStdout(), auditLimit, since)
	},
}

// auditVerifyCmd verifies audit log integrity
var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit log HMAC chain integrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.AuditEnabled() {
			return errAuditDisabled
		}
		l := audit.NewLogger(cfg.AuditDir())
		kf, err := keyfile.Read(cfg.Keyfile)
		if err != nil {
			return fmt.Errorf("failed to read keyfile: %w", err)
		}
		defer crypto.SecureWipe(kf)
		if err := l.SetKey(kf); err != nil {
			return err
		}
		return runAuditVerify(l, cmd.OutOrStdout(), auditJSON)
	},
}

func runAuditList(l *audit.Logger, out io.Writer, limit int, since time.Time) error {
	events, err := l.ListEvents(limit, since)
	if err != nil {
		return fmt.Errorf("failed to list audit events: %w", err)
	}

	if len(events) == 0 {
		fmt.Fprintln(out, "No audit events found")
		return nil
	}

	for _, event := range events {
		// Format: TIMESTAMP OPERATION RESULT [site:HASH] [error:CODE]
		line := fmt.Sprintf("%s %s %s", event.Timestamp, event.Operation, event.Result)
		if event.SiteHMAC != "" {
			site := event.SiteHMAC
			if len(site) > 16 {
				site = site[:16] + "..."
			}
			line += " site:" + site
		}
		if event.Error != nil && event.Error.Code != "" {
			line += " error:" + event.Error.Code
		}
		fmt.Fprintln(out, line)
	}

	fmt.Fprintf(out, "\nTotal: %d events\n", len(events))
	return nil
}

func runAuditVerify(l *audit.Logger, out io.Writer, asJSON bool) error {
	result, err := l.Verify()
	if err != nil {
		return fmt.Errorf("failed to verify audit log: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(out, "Audit log verified: %d records, chain intact\n", result.RecordsTotal)
	} else {
		fmt.Fprintln(out, "Audit log verification FAILED")
		fmt.Fprintf(out, "  Records total: %d\n", result.RecordsTotal)
		fmt.Fprintf(out, "  Records verified: %d\n", result.RecordsVerified)
		fmt.Fprintln(out, "  Errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "    - %s\n", e)
		}
	}

	if !result.Valid {
		return fmt.Errorf("audit log integrity check failed")
	}
	return nil
}
