// Package config loads spm's optional YAML configuration.
//
// The file lives at ~/.spm/config.yaml. A missing file yields defaults.
// An existing file must be a regular file owned by the current user and
// not writable by group or others.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file name inside the config directory.
const FileName = "config.yaml"

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreBolt   = "bolt"
)

// Environment overrides.
const (
	EnvDataDir = "SPM_DATA_DIR"
	EnvKeyfile = "SPM_KEYFILE"
	EnvStore   = "SPM_STORE"
	EnvConfig  = "SPM_CONFIG"
)

// DefaultClipboardClear is how long a copied secret stays on the clipboard.
const DefaultClipboardClear = 30 * time.Second

var (
	ErrInsecure        = errors.New("config: file has insecure permissions")
	ErrSymlink         = errors.New("config: file is a symlink")
	ErrNotOwnedByUser  = errors.New("config: file not owned by current user")
	ErrUnknownStore    = errors.New("config: unknown store backend")
	ErrInvalidLogLevel = errors.New("config: invalid log level")
	errNotFound        = errors.New("config: file not found")
)

// Config holds spm settings.
type Config struct {
	DataDir        string        `yaml:"data_dir"`
	Keyfile        string        `yaml:"keyfile"`
	Store          string        `yaml:"store"`
	Audit          *bool         `yaml:"audit"`
	LogLevel       string        `yaml:"log_level"`
	ClipboardClear time.Duration `yaml:"clipboard_clear"`
}

// Default returns the built-in configuration rooted at home.
func Default(home string) *Config {
	audit := true
	return &Config{
		DataDir:        filepath.Join(home, ".spm"),
		Keyfile:        filepath.Join(home, ".secure_pm", "keyfile.key"),
		Store:          StoreSQLite,
		Audit:          &audit,
		LogLevel:       "warn",
		ClipboardClear: DefaultClipboardClear,
	}
}

// AuditEnabled reports whether the audit log should be written.
func (c *Config) AuditEnabled() bool {
	return c.Audit == nil || *c.Audit
}

// StorePath returns the database file for the configured backend.
func (c *Config) StorePath() string {
	if c.Store == StoreBolt {
		return filepath.Join(c.DataDir, "spm.bolt")
	}
	return filepath.Join(c.DataDir, "spm.db")
}

// AuditDir returns the directory holding audit log files.
func (c *Config) AuditDir() string {
	return filepath.Join(c.DataDir, "audit")
}

// DefaultPath returns ~/.spm/config.yaml, or $SPM_CONFIG when set.
func DefaultPath(home string) string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return filepath.Join(home, ".spm", FileName)
}

// Load reads the config at path on top of the defaults for home, then
// applies environment overrides. A missing file is not an error.
func Load(path, home string) (*Config, error) {
	cfg := Default(home)

	content, err := readFile(path)
	switch {
	case errors.Is(err, errNotFound):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.DataDir = expandHome(cfg.DataDir, home)
	cfg.Keyfile = expandHome(cfg.Keyfile, home)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case StoreSQLite, StoreBolt:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}

	if c.ClipboardClear < 0 {
		return fmt.Errorf("config: clipboard_clear must not be negative")
	}
	if c.DataDir == "" || c.Keyfile == "" {
		return fmt.Errorf("config: data_dir and keyfile must be set")
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvKeyfile); v != "" {
		c.Keyfile = v
	}
	if v := os.Getenv(EnvStore); v != "" {
		c.Store = v
	}
}

func expandHome(p, home string) string {
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}

// readFile opens path without following symlinks and checks the
// descriptor's mode and owner before reading.
func readFile(path string) ([]byte, error) {
	f, err := openConfigFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("config: failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config: %s is not a regular file", path)
	}
	if err := checkFileSecurity(info); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return content, nil
}
