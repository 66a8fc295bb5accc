// Package audit provides the vault's security event log, an append-only JSONL
// file protected by an HMAC chain for tamper detection.
//
// The chain key is derived from the keyfile with HKDF-SHA256, so events can be
// written before the master password has been verified (failed logins,
// lockouts) and without ever touching the session key. Site names are written
// as keyed HMACs, never in clear.
package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// Disk space constants
const (
	MinAuditDiskSpace = 1024 * 1024 // 1 MB minimum for audit logs
)

const (
	genesis      = "genesis"
	chainFile    = "audit.meta"
	archiveDir   = "archive"
	hkdfInfo     = "spm-audit-v1"
	eventVersion = 1
)

// Operation types for audit logging
const (
	// Vault lifecycle
	OpVaultSignup         = "vault.signup"
	OpVaultLogin          = "vault.login"
	OpVaultLoginFailed    = "vault.login_failed"
	OpVaultLockout        = "vault.lockout"
	OpVaultKeyfileInvalid = "vault.keyfile_invalid"
	OpVaultDelete         = "vault.delete"
	OpVaultBackup         = "vault.backup"
	OpVaultRestore        = "vault.restore"

	// Session
	OpSessionLogout  = "session.logout"
	OpSessionExpired = "session.expired"

	// Credentials
	OpCredentialSave   = "credential.save"
	OpCredentialGet    = "credential.get"
	OpCredentialDelete = "credential.delete"
	OpCredentialList   = "credential.list"
)

// Result indicates the outcome of an operation
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultDenied  = "denied"
)

// ErrNoKey is returned when writing or verifying before SetKey.
var ErrNoKey = errors.New("audit: HMAC key not set")

// Event is a single audit record.
type Event struct {
	Version   int    `json:"v"`
	ID        string `json:"id"`
	Timestamp string `json:"ts"` // RFC 3339 nanosecond precision

	Operation string `json:"op"`
	SiteHMAC  string `json:"site,omitempty"`
	SessionID string `json:"session,omitempty"`

	Result string     `json:"result"`
	Error  *ErrorInfo `json:"error,omitempty"`

	Context map[string]interface{} `json:"ctx,omitempty"`

	Chain Chain `json:"chain"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Chain links a record to its predecessor.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
	HMAC     string `json:"hmac"`
}

// Logger writes chained audit events to monthly JSONL files under a directory.
type Logger struct {
	path      string
	hmacKey   []byte
	mu        sync.Mutex
	sequence  int64
	prevHash  string
	sessionID string
	now       func() time.Time
}

// NewLogger creates a logger writing under path. No event can be written
// until SetKey has been called.
func NewLogger(path string) *Logger {
	return &Logger{
		path:     path,
		prevHash: genesis,
		now:      time.Now,
	}
}

// SetKey derives the chain key from the keyfile bytes and loads the chain
// state left by earlier runs.
func (l *Logger) SetKey(keyfile []byte) error {
	if len(keyfile) == 0 {
		return fmt.Errorf("audit: empty key material")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := make([]byte, 32)
	if _, err := hkdf.New(sha256.New, keyfile, nil, []byte(hkdfInfo)).Read(key); err != nil {
		return fmt.Errorf("audit: failed to derive HMAC key: %w", err)
	}
	l.hmacKey = key

	if err := l.loadChainState(); err != nil {
		// First run, or chain state lost
		l.sequence = 0
		l.prevHash = genesis
	}
	return nil
}

// HasKey reports whether SetKey has succeeded.
func (l *Logger) HasKey() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hmacKey != nil
}

// SetSession tags subsequent events with a session ID; empty clears it.
func (l *Logger) SetSession(id string) {
	l.mu.Lock()
	l.sessionID = id
	l.mu.Unlock()
}

// Log records an audit event
func (l *Logger) Log(op, result, site string, errInfo *ErrorInfo, ctx map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hmacKey == nil {
		return ErrNoKey
	}

	if err := os.MkdirAll(l.path, 0700); err != nil {
		return fmt.Errorf("audit: failed to create directory: %w", err)
	}
	if err := l.checkDiskSpace(); err != nil {
		return err
	}

	now := l.now().UTC()
	event := Event{
		Version:   eventVersion,
		ID:        uuid.NewString(),
		Timestamp: now.Format(time.RFC3339Nano),
		Operation: op,
		SessionID: l.sessionID,
		Result:    result,
		Error:     errInfo,
		Context:   ctx,
	}
	if site != "" {
		event.SiteHMAC = l.mac([]byte("site|" + site))
	}

	l.sequence++
	event.Chain.Sequence = l.sequence
	event.Chain.PrevHash = l.prevHash
	event.Chain.HMAC = l.mac(recordData(&event))

	if err := l.writeEvent(&event, now); err != nil {
		l.sequence--
		return err
	}
	l.prevHash = event.Chain.HMAC

	return l.saveChainState()
}

// LogSuccess is a convenience method for successful operations
func (l *Logger) LogSuccess(op, site string) error {
	return l.Log(op, ResultSuccess, site, nil, nil)
}

// LogError is a convenience method for failed operations
func (l *Logger) LogError(op, site, errCode, errMsg string) error {
	return l.Log(op, ResultError, site, &ErrorInfo{Code: errCode, Message: errMsg}, nil)
}

// LogDenied is a convenience method for refused operations
func (l *Logger) LogDenied(op, reason string) error {
	return l.Log(op, ResultDenied, "", nil, map[string]interface{}{"reason": reason})
}

// SiteHMAC returns the HMAC a site name is recorded under, for lookups.
func (l *Logger) SiteHMAC(site string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hmacKey == nil {
		return "", ErrNoKey
	}
	return l.mac([]byte("site|" + site)), nil
}

func (l *Logger) mac(data []byte) string {
	m := hmac.New(sha256.New, l.hmacKey)
	m.Write(data)
	return hex.EncodeToString(m.Sum(nil))
}

// recordData is the canonical byte form covered by the chain HMAC.
func recordData(event *Event) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%s|%s|%s|%s|%s|",
		event.Version, event.ID, event.Timestamp, event.Operation,
		event.SiteHMAC, event.SessionID, event.Result)

	if event.Error != nil {
		fmt.Fprintf(&b, "%s|%s", event.Error.Code, event.Error.Message)
	}
	b.WriteByte('|')

	keys := make([]string, 0, len(event.Context))
	for k := range event.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v|", k, event.Context[k])
	}

	fmt.Fprintf(&b, "%d|%s", event.Chain.Sequence, event.Chain.PrevHash)
	return []byte(b.String())
}

// writeEvent appends an event to the month's log file
func (l *Logger) writeEvent(event *Event, now time.Time) error {
	name := filepath.Join(l.path, now.Format("2006-01")+".jsonl")

	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("audit: failed to open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: failed to write event: %w", err)
	}
	return nil
}

type chainState struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
}

func (l *Logger) loadChainState() error {
	data, err := os.ReadFile(filepath.Join(l.path, chainFile))
	if err != nil {
		return err
	}

	var state chainState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	l.sequence = state.Sequence
	l.prevHash = state.PrevHash
	return nil
}

func (l *Logger) saveChainState() error {
	data, err := json.Marshal(chainState{Sequence: l.sequence, PrevHash: l.prevHash})
	if err != nil {
		return fmt.Errorf("audit: failed to marshal chain state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.path, chainFile), data, 0600); err != nil {
		return fmt.Errorf("audit: failed to save chain state: %w", err)
	}
	return nil
}

// Rotate closes the current chain: existing log files and chain state move to
// archive/<timestamp>/ and the next event starts a fresh chain. Used when the
// keyfile is replaced, since the old chain can no longer be verified with the
// new key. The key is cleared; call SetKey again before logging.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := l.logFiles()
	if err != nil {
		return err
	}
	metaPath := filepath.Join(l.path, chainFile)
	if _, err := os.Stat(metaPath); err == nil {
		files = append(files, metaPath)
	}

	if len(files) > 0 {
		dest := filepath.Join(l.path, archiveDir, l.now().UTC().Format("20060102T150405.000000000Z"))
		if err := os.MkdirAll(dest, 0700); err != nil {
			return fmt.Errorf("audit: failed to create archive directory: %w", err)
		}
		for _, f := range files {
			if err := os.Rename(f, filepath.Join(dest, filepath.Base(f))); err != nil {
				return fmt.Errorf("audit: failed to archive %s: %w", filepath.Base(f), err)
			}
		}
	}

	l.hmacKey = nil
	l.sequence = 0
	l.prevHash = genesis
	l.sessionID = ""
	return nil
}

// logFiles returns the current chain's files in chronological order
func (l *Logger) logFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(l.path, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list log files: %w", err)
	}
	// YYYY-MM.jsonl sorts chronologically
	sort.Strings(files)
	return files, nil
}

// VerifyResult contains the results of chain verification
type VerifyResult struct {
	Valid           bool     `json:"valid"`
	RecordsTotal    int      `json:"records_total"`
	RecordsVerified int      `json:"records_verified"`
	Errors          []string `json:"errors,omitempty"`
}

// Verify checks sequence numbers, back links and HMACs of the current chain.
func (l *Logger) Verify() (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hmacKey == nil {
		return nil, ErrNoKey
	}

	files, err := l.logFiles()
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Valid: true}
	expectedPrev := genesis
	var expectedSeq int64 = 1

	for _, file := range files {
		events, err := readLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to read %s: %w", filepath.Base(file), err)
		}

		for i := range events {
			event := &events[i]
			result.RecordsTotal++
			ok := true

			if event.Chain.Sequence != expectedSeq {
				ok = false
				result.Errors = append(result.Errors, fmt.Sprintf(
					"sequence gap at record %s: expected %d, got %d",
					event.ID, expectedSeq, event.Chain.Sequence))
			}
			if event.Chain.PrevHash != expectedPrev {
				ok = false
				result.Errors = append(result.Errors, fmt.Sprintf(
					"chain broken at record %s", event.ID))
			}
			if !hmac.Equal([]byte(event.Chain.HMAC), []byte(l.mac(recordData(event)))) {
				ok = false
				result.Errors = append(result.Errors, fmt.Sprintf(
					"HMAC mismatch at record %s: possible tampering", event.ID))
			}

			if ok {
				result.RecordsVerified++
			} else {
				result.Valid = false
			}
			expectedPrev = event.Chain.HMAC
			expectedSeq = event.Chain.Sequence + 1
		}
	}

	return result, nil
}

func readLogFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return nil, fmt.Errorf("failed to parse line: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

// ListEvents returns events of the current chain, oldest first.
// limit keeps only the most recent events (0 = all); a non-zero since drops
// events at or before it.
func (l *Logger) ListEvents(limit int, since time.Time) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := l.logFiles()
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, file := range files {
		fileEvents, err := readLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to read %s: %w", filepath.Base(file), err)
		}
		for _, event := range fileEvents {
			if !since.IsZero() {
				ts, err := time.Parse(time.RFC3339Nano, event.Timestamp)
				if err != nil || !ts.After(since) {
					continue
				}
			}
			events = append(events, event)
		}
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// Path returns the audit log directory path
func (l *Logger) Path() string {
	return l.path
}
