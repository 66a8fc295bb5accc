package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mg2305/Secure-Password-Manager/internal/config"
	"github.com/mg2305/Secure-Password-Manager/pkg/audit"
	"github.com/mg2305/Secure-Password-Manager/pkg/crypto"
	"github.com/mg2305/Secure-Password-Manager/pkg/store"
	"github.com/mg2305/Secure-Password-Manager/pkg/vault"
)

var (
	configPath string
	logLevel   string

	cfg      *config.Config
	logger   *log.Logger
	st       store.Store
	auditLog *audit.Logger
	v        *vault.Vault
)

var rootCmd = &cobra.Command{
	Use:           "spm",
	Short:         "spm is a single-user password manager",
	Long:          `spm keeps site credentials encrypted under a key derived from a master password and a keyfile.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE loads configuration and opens the vault for every
	// command that needs it.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setup(); err != nil {
			return err
		}
		if !needsVault(cmd) {
			return nil
		}
		return openVault()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.spm/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostic log level: debug, info, warn, error")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(importCmd)
}

// needsVault reports whether cmd works on the vault rather than standalone.
func needsVault(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["standalone"] == "true" || c.Name() == "help" || c.Name() == "completion" {
			return false
		}
	}
	return true
}

func setup() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath(home)
	}
	cfg, err = config.Load(path, home)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err = newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	if err := crypto.DisableCoreDumps(); err != nil {
		logger.Debug("could not disable core dumps", "err", err)
	}
	return nil
}

func openVault() error {
	var err error
	st, err = store.Open(cfg.Store, cfg.StorePath(), vault.InitialLastFailure(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	if cfg.AuditEnabled() {
		auditLog = audit.NewLogger(cfg.AuditDir())
	}

	v, err = vault.New(vault.Options{
		Store:       st,
		KeyfilePath: cfg.Keyfile,
		DataDir:     filepath.Clean(cfg.DataDir),
		Audit:       auditLog,
		Logger:      logger,
	})
	if err != nil {
		st.Close()
		return err
	}
	logger.Debug("vault opened", "store", cfg.Store, "path", cfg.StorePath())
	return nil
}

func closeVault() {
	if v != nil {
		v.Close()
		v = nil
	}
	if st != nil {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", "err", err)
		}
		st = nil
	}
}
