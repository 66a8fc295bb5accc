package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	FileMode = 0600 // Owner read/write only
	DirMode  = 0700 // Owner read/write/execute only
)

// SQLite is the SQLite-backed Store.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the SQLite database at path.
func OpenSQLite(path string, initialLastFailure time.Time) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return nil, fmt.Errorf("store: failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	// Single connection: the store is the only writer and serialises itself
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db, path: path}
	if err := s.createTables(initialLastFailure); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to create tables: %w", err)
	}

	if err := os.Chmod(path, FileMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to set database permissions: %w", err)
	}

	return s, nil
}

// createTables creates the three tables and seeds their singleton rows
func (s *SQLite) createTables(initialLastFailure time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vault_metadata (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			vault_exists INTEGER NOT NULL,
			mp_hash TEXT,
			enc_token BLOB
		)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			site TEXT UNIQUE NOT NULL,
			username TEXT,
			secret BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS last_failed (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_failed INTEGER NOT NULL
		)`,
		`INSERT OR IGNORE INTO vault_metadata (id, vault_exists, mp_hash, enc_token) VALUES (1, 0, NULL, NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO last_failed (id, last_failed) VALUES (1, ?)`,
		initialLastFailure.UnixNano()); err != nil {
		return err
	}

	return tx.Commit()
}

// Path returns the database file path
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetVaultMetadata reads the singleton metadata row
func (s *SQLite) GetVaultMetadata() (VaultMetadata, error) {
	var (
		meta   VaultMetadata
		exists int
		hash   sql.NullString
		marker []byte
	)
	err := s.db.QueryRow(`SELECT vault_exists, mp_hash, enc_token FROM vault_metadata WHERE id = 1`).
		Scan(&exists, &hash, &marker)
	if err != nil {
		return meta, fmt.Errorf("store: failed to read vault metadata: %w", err)
	}

	meta.Exists = exists != 0
	meta.MasterHash = hash.String
	meta.EncryptedMarker = marker
	return meta, nil
}

// SetVaultMetadata overwrites the singleton metadata row
func (s *SQLite) SetVaultMetadata(meta VaultMetadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}

	var hash any
	var marker any
	if meta.Exists {
		hash = meta.MasterHash
		marker = meta.EncryptedMarker
	}

	_, err := s.db.Exec(`INSERT OR REPLACE INTO vault_metadata (id, vault_exists, mp_hash, enc_token) VALUES (1, ?, ?, ?)`,
		boolToInt(meta.Exists), hash, marker)
	if err != nil {
		return fmt.Errorf("store: failed to write vault metadata: %w", err)
	}
	return nil
}

// CredentialExists reports whether site has a record
func (s *SQLite) CredentialExists(site string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM credentials WHERE site = ? LIMIT 1`, site).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: failed to query credential: %w", err)
	}
	return true, nil
}

// InsertCredential adds a record; ErrAlreadyExists if site is taken
func (s *SQLite) InsertCredential(cred Credential) error {
	if cred.Site == "" {
		return ErrEmptySite
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRow(`SELECT 1 FROM credentials WHERE site = ? LIMIT 1`, cred.Site).Scan(&one)
	switch {
	case err == nil:
		return ErrAlreadyExists
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("store: failed to query credential: %w", err)
	}

	var username any
	if cred.Username != "" {
		username = cred.Username
	}
	if _, err := tx.Exec(`INSERT INTO credentials (site, username, secret, created_at) VALUES (?, ?, ?, ?)`,
		cred.Site, username, cred.Secret, cred.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("store: failed to insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: failed to commit transaction: %w", err)
	}
	return nil
}

// GetCredential reads a record; ErrNotFound if absent
func (s *SQLite) GetCredential(site string) (Credential, error) {
	var (
		cred     Credential
		username sql.NullString
		created  int64
	)
	err := s.db.QueryRow(`SELECT site, username, secret, created_at FROM credentials WHERE site = ?`, site).
		Scan(&cred.Site, &username, &cred.Secret, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("store: failed to read credential: %w", err)
	}

	cred.Username = username.String
	cred.CreatedAt = time.Unix(0, created)
	return cred, nil
}

// DeleteCredential removes a record; ErrNotFound if absent
func (s *SQLite) DeleteCredential(site string) error {
	res, err := s.db.Exec(`DELETE FROM credentials WHERE site = ?`, site)
	if err != nil {
		return fmt.Errorf("store: failed to delete credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: failed to delete credential: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSites returns all site names in insertion order
func (s *SQLite) ListSites() ([]string, error) {
	rows, err := s.db.Query(`SELECT site FROM credentials ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list credentials: %w", err)
	}
	defer rows.Close()

	sites := []string{}
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("store: failed to scan credential: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: failed to list credentials: %w", err)
	}
	return sites, nil
}

// GetLastFailure reads the last lockout timestamp
func (s *SQLite) GetLastFailure() (time.Time, error) {
	var nanos int64
	if err := s.db.QueryRow(`SELECT last_failed FROM last_failed WHERE id = 1`).Scan(&nanos); err != nil {
		return time.Time{}, fmt.Errorf("store: failed to read last failure: %w", err)
	}
	return time.Unix(0, nanos), nil
}

// SetLastFailure overwrites the last lockout timestamp
func (s *SQLite) SetLastFailure(t time.Time) error {
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO last_failed (id, last_failed) VALUES (1, ?)`, t.UnixNano()); err != nil {
		return fmt.Errorf("store: failed to write last failure: %w", err)
	}
	return nil
}

// Reset empties all three tables in one transaction
func (s *SQLite) Reset(lastFailure time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM credentials`, nil},
		{`INSERT OR REPLACE INTO vault_metadata (id, vault_exists, mp_hash, enc_token) VALUES (1, 0, NULL, NULL)`, nil},
		{`INSERT OR REPLACE INTO last_failed (id, last_failed) VALUES (1, ?)`, []any{lastFailure.UnixNano()}},
	}
	for _, st := range stmts {
		if _, err := tx.Exec(st.query, st.args...); err != nil {
			return fmt.Errorf("store: failed to reset: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: failed to commit transaction: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
