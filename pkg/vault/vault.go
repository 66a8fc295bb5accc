// Package vault is the authentication and key-management core of spm.
//
// A Vault ties a record store to a keyfile. SignUp creates the keyfile and the
// vault metadata; AttemptLogin runs the lockout guard, the password check, the
// keyfile marker check and the key derivation, then hands back a Session
// whose key encrypts and decrypts credential secrets until Logout or until
// the inactivity watchdog expires it.
package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/text/unicode/norm"

	"github.com/mg2305/Secure-Password-Manager/pkg/audit"
	"github.com/mg2305/Secure-Password-Manager/pkg/crypto"
	"github.com/mg2305/Secure-Password-Manager/pkg/keyfile"
	"github.com/mg2305/Secure-Password-Manager/pkg/store"
)

// Marker is the plaintext sealed under the keyfile at sign-up.
const Marker = "spm keyfile marker v1"

// Input validation limits
const (
	MaxSiteLength     = 256         // Maximum site name length in runes
	MaxUsernameLength = 256         // Maximum username length in runes
	MaxSecretSize     = 1024 * 1024 // 1 MB maximum secret size
)

// Errors
var (
	ErrNoVault             = errors.New("vault: vault does not exist")
	ErrNoSession           = errors.New("vault: no active session")
	ErrSessionActive       = errors.New("vault: a session is already active")
	ErrSessionExpired      = errors.New("vault: session expired")
	ErrCredentialExists    = fmt.Errorf("vault: %w", store.ErrAlreadyExists)
	ErrCredentialNotFound  = fmt.Errorf("vault: %w", store.ErrNotFound)
	ErrSiteEmpty           = errors.New("vault: site cannot be empty")
	ErrSiteTooLong         = errors.New("vault: site name too long")
	ErrUsernameTooLong     = errors.New("vault: username too long")
	ErrSecretEmpty         = errors.New("vault: secret cannot be empty")
	ErrSecretTooLarge      = errors.New("vault: secret too large")
	ErrCredentialCorrupted = errors.New("vault: stored credential could not be decrypted")
)

// Options configures a Vault.
type Options struct {
	// Store is required. The caller keeps ownership and closes it.
	Store store.Store

	// KeyfilePath is required.
	KeyfilePath string

	// DataDir is checked for free space before writes and for permissions
	// at login. Optional.
	DataDir string

	// Audit receives security events. Optional.
	Audit *audit.Logger

	// Logger receives diagnostics. Defaults to discarding.
	Logger *log.Logger

	// Now and NewTicker replace the wall clock in tests.
	Now       func() time.Time
	NewTicker TickerFunc
}

// Entry is a decrypted credential.
type Entry struct {
	Site      string
	Username  string
	Secret    []byte
	CreatedAt time.Time
}

// Vault is the presentation-layer entry point. All methods are safe for
// concurrent use; at most one Session is live at a time.
type Vault struct {
	store       store.Store
	keyfilePath string
	dataDir     string
	audit       *audit.Logger
	log         *log.Logger
	now         func() time.Time
	newTicker   TickerFunc

	mu      sync.Mutex
	guard   *Guard
	session *Session
}

// New creates a Vault from opts.
func New(opts Options) (*Vault, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("vault: store is required")
	}
	if opts.KeyfilePath == "" {
		return nil, fmt.Errorf("vault: keyfile path is required")
	}

	v := &Vault{
		store:       opts.Store,
		keyfilePath: opts.KeyfilePath,
		dataDir:     opts.DataDir,
		audit:       opts.Audit,
		log:         opts.Logger,
		now:         opts.Now,
		newTicker:   opts.NewTicker,
		guard:       NewGuard(opts.Store),
	}
	if v.log == nil {
		v.log = log.New(io.Discard)
	}
	if v.now == nil {
		v.now = time.Now
	}
	if v.newTicker == nil {
		v.newTicker = defaultTicker
	}
	return v, nil
}

// InitialLastFailure is the last-failure value for a new or reset store:
// a cooldown that has already elapsed.
func InitialLastFailure(now time.Time) time.Time {
	return now.Add(-CooldownWindow)
}

// Exists reports whether sign-up has completed.
func (v *Vault) Exists() (bool, error) {
	meta, err := v.store.GetVaultMetadata()
	if err != nil {
		return false, err
	}
	return meta.Exists, nil
}

// SignUp creates the vault: a fresh keyfile, the master password hash and the
// keyfile marker. Every failure is a *SetupError.
func (v *Vault) SignUp(password, confirm string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	meta, err := v.store.GetVaultMetadata()
	if err != nil {
		return setupErr(ErrSetupStore, err)
	}
	if meta.Exists {
		return setupErr(ErrVaultExists, nil)
	}
	if password == "" {
		return setupErr(ErrEmptyPassword, nil)
	}
	if password != confirm {
		return setupErr(ErrPasswordMismatch, nil)
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return setupErr(ErrPasswordHash, err)
	}

	if err := keyfile.Generate(v.keyfilePath); err != nil {
		return setupErr(ErrKeyfileIO, err)
	}
	kf, err := keyfile.Read(v.keyfilePath)
	if err != nil {
		return setupErr(ErrKeyfileIO, err)
	}
	defer crypto.SecureWipe(kf)

	sealed, ok := crypto.SealMarker(Marker, kf)
	if !ok {
		v.discardKeyfile()
		return setupErr(ErrMarkerSeal, nil)
	}

	meta = store.VaultMetadata{Exists: true, MasterHash: hash, EncryptedMarker: sealed}
	if err := v.store.SetVaultMetadata(meta); err != nil {
		v.discardKeyfile()
		return setupErr(ErrSetupStore, err)
	}

	// New keyfile, new audit chain
	if v.audit != nil {
		if err := v.audit.Rotate(); err != nil {
			v.log.Warn("failed to rotate audit log", "err", err)
		}
		if err := v.audit.SetKey(kf); err != nil {
			v.log.Warn("failed to initialize audit logger", "err", err)
		}
	}
	v.auditSuccess(audit.OpVaultSignup, "")
	v.log.Info("vault created", "keyfile", v.keyfilePath)
	return nil
}

func (v *Vault) discardKeyfile() {
	if err := keyfile.Destroy(v.keyfilePath); err != nil {
		v.log.Warn("failed to remove keyfile after failed sign-up", "err", err)
	}
}

// AttemptLogin checks one password. A Vault keeps its failure count across
// calls, so a caller loops on LoginWrongPassword until success or lockout.
func (v *Vault) AttemptLogin(password string) LoginOutcome {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session != nil {
		return LoginOutcome{Kind: LoginError, Err: ErrSessionActive}
	}

	meta, err := v.store.GetVaultMetadata()
	if err != nil {
		return LoginOutcome{Kind: LoginError, Err: err}
	}
	if !meta.Exists {
		return LoginOutcome{Kind: LoginNoVault}
	}

	// The audit key comes from the keyfile, so it may be set before the
	// password is known. A missing keyfile only means nothing is recorded.
	kf, kfErr := keyfile.Read(v.keyfilePath)
	defer crypto.SecureWipe(kf)
	if kfErr == nil {
		v.ensureAuditKey(kf)
	}

	now := v.now()
	state, remaining, err := v.guard.Check(now)
	if err != nil {
		return LoginOutcome{Kind: LoginError, Err: err}
	}
	if state == GuardLockedOut {
		v.auditDenied(audit.OpVaultLockout, "cooldown active")
		return LoginOutcome{Kind: LoginLockedOut, Remaining: remaining}
	}

	if !crypto.VerifyPassword(password, meta.MasterHash) {
		state, left, err := v.guard.RecordFailure(now)
		if err != nil {
			v.log.Warn("failed to persist lockout", "err", err)
		}
		if state == GuardLockedOut {
			v.auditDenied(audit.OpVaultLockout, "too many failed attempts")
			v.log.Warn("login locked out", "cooldown", CooldownWindow)
			return LoginOutcome{Kind: LoginLockedOut, Remaining: CooldownWindow}
		}
		v.auditError(audit.OpVaultLoginFailed, "", "AUTH_FAILED", "invalid master password")
		return LoginOutcome{Kind: LoginWrongPassword, AttemptsLeft: left}
	}
	v.guard.Reset()

	if kfErr != nil || !crypto.CheckMarker(meta.EncryptedMarker, kf, Marker) {
		if kfErr != nil {
			v.log.Debug("keyfile unreadable", "err", kfErr)
		}
		v.auditError(audit.OpVaultKeyfileInvalid, "", "KEYFILE_INVALID", "keyfile verification failed")
		return LoginOutcome{Kind: LoginKeyfileInvalid}
	}

	key, err := crypto.DeriveVaultKey([]byte(password), kf)
	if err != nil {
		v.auditError(audit.OpVaultKeyfileInvalid, "", "KDF_FAILED", "key derivation failed")
		return LoginOutcome{Kind: LoginKeyfileInvalid}
	}
	if err := crypto.LockMemory(key); err != nil {
		v.log.Debug("could not lock session key in memory", "err", err)
	}

	s := newSession(key, v.now)
	s.startWatchdog(v.newTicker)
	v.session = s

	if v.audit != nil {
		v.audit.SetSession(s.ID())
	}
	v.auditSuccess(audit.OpVaultLogin, "")
	v.checkAndWarnPermissions()
	v.log.Debug("session started", "session", s.ID())

	return LoginOutcome{Kind: LoginSuccess, Session: s}
}

// Logout ends s. forced marks an inactivity expiry rather than a user
// request; both paths wipe the key and stop the watchdog. Logging out a
// session that is not current is a no-op.
func (v *Vault) Logout(s *Session, forced bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s == nil || s != v.session {
		return
	}
	prev, ok := s.stop()
	v.session = nil
	if !ok {
		return
	}

	op := audit.OpSessionLogout
	if forced || prev == SessionExpired {
		op = audit.OpSessionExpired
	}
	v.auditSuccess(op, "")
	if v.audit != nil {
		v.audit.SetSession("")
	}
	v.log.Debug("session ended", "session", s.ID(), "forced", forced)
}

// RecordActivity resets the inactivity timer of a running session.
func (v *Vault) RecordActivity(s *Session) {
	if s == nil || s.State() != SessionRunning {
		return
	}
	s.touch()
}

// ActiveSession returns the live session, if any.
func (v *Vault) ActiveSession() *Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session
}

// current checks that s is the live session and still running.
func (v *Vault) current(s *Session) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s == nil || s != v.session {
		return ErrNoSession
	}
	switch s.State() {
	case SessionExpired:
		return ErrSessionExpired
	case SessionStopped:
		return ErrNoSession
	}
	return nil
}

// SaveCredential encrypts secret and stores it under site. A site that
// already has a credential is rejected with ErrCredentialExists.
func (v *Vault) SaveCredential(s *Session, site, username, secret string) error {
	if err := v.current(s); err != nil {
		return err
	}
	site, err := normalizeSite(site)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if secret == "" {
		return ErrSecretEmpty
	}
	if len(secret) > MaxSecretSize {
		return ErrSecretTooLarge
	}

	exists, err := v.store.CredentialExists(site)
	if err != nil {
		return fmt.Errorf("vault: failed to check site: %w", err)
	}
	if exists {
		return ErrCredentialExists
	}

	if err := v.checkDiskSpaceForWrite(len(secret)); err != nil {
		return err
	}

	var blob []byte
	err = s.withKey(func(key []byte) error {
		var encErr error
		blob, encErr = crypto.Encrypt(key, []byte(secret))
		return encErr
	})
	if err != nil {
		return err
	}

	err = v.store.InsertCredential(store.Credential{
		Site:      site,
		Username:  strings.TrimSpace(username),
		Secret:    blob,
		CreatedAt: v.now(),
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrCredentialExists
	}
	if err != nil {
		return fmt.Errorf("vault: failed to save credential: %w", err)
	}

	v.auditSuccess(audit.OpCredentialSave, site)
	return nil
}

// RetrieveCredential decrypts the credential for site. The caller should
// wipe Entry.Secret when done.
func (v *Vault) RetrieveCredential(s *Session, site string) (*Entry, error) {
	if err := v.current(s); err != nil {
		return nil, err
	}
	site, err := normalizeSite(site)
	if err != nil {
		return nil, err
	}

	cred, err := v.store.GetCredential(site)
	if errors.Is(err, store.ErrNotFound) {
		v.auditError(audit.OpCredentialGet, site, "NOT_FOUND", "no credential for site")
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("vault: failed to read credential: %w", err)
	}

	var plaintext []byte
	err = s.withKey(func(key []byte) error {
		var decErr error
		plaintext, decErr = crypto.Decrypt(key, cred.Secret)
		return decErr
	})
	if errors.Is(err, crypto.ErrDecryptionFailed) || errors.Is(err, crypto.ErrCiphertextTooShort) {
		v.auditError(audit.OpCredentialGet, site, "DECRYPT_FAILED", "ciphertext rejected")
		return nil, ErrCredentialCorrupted
	}
	if err != nil {
		return nil, err
	}

	v.auditSuccess(audit.OpCredentialGet, site)
	return &Entry{
		Site:      cred.Site,
		Username:  cred.Username,
		Secret:    plaintext,
		CreatedAt: cred.CreatedAt,
	}, nil
}

// DeleteCredential removes the credential for site.
func (v *Vault) DeleteCredential(s *Session, site string) error {
	if err := v.current(s); err != nil {
		return err
	}
	site, err := normalizeSite(site)
	if err != nil {
		return err
	}

	err = v.store.DeleteCredential(site)
	if errors.Is(err, store.ErrNotFound) {
		return ErrCredentialNotFound
	}
	if err != nil {
		return fmt.Errorf("vault: failed to delete credential: %w", err)
	}

	v.auditSuccess(audit.OpCredentialDelete, site)
	return nil
}

// ListSites returns the stored site names in insertion order.
func (v *Vault) ListSites(s *Session) ([]string, error) {
	if err := v.current(s); err != nil {
		return nil, err
	}

	sites, err := v.store.ListSites()
	if err != nil {
		return nil, fmt.Errorf("vault: failed to list credentials: %w", err)
	}

	v.auditSuccess(audit.OpCredentialList, "")
	return sites, nil
}

// DeleteVault destroys the keyfile and empties the store. It is refused
// while a session is live.
func (v *Vault) DeleteVault() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session != nil {
		return ErrSessionActive
	}

	meta, err := v.store.GetVaultMetadata()
	if err != nil {
		return err
	}
	if !meta.Exists {
		return ErrNoVault
	}

	if kf, err := keyfile.Read(v.keyfilePath); err == nil {
		v.ensureAuditKey(kf)
		crypto.SecureWipe(kf)
	}

	if err := keyfile.Destroy(v.keyfilePath); err != nil {
		v.auditError(audit.OpVaultDelete, "", "KEYFILE_IO", err.Error())
		return fmt.Errorf("%w: %v", ErrKeyfileIO, err)
	}
	if err := v.store.Reset(InitialLastFailure(v.now())); err != nil {
		v.auditError(audit.OpVaultDelete, "", "RESET_FAILED", err.Error())
		return fmt.Errorf("vault: failed to reset store: %w", err)
	}
	v.guard.Reset()
	v.auditSuccess(audit.OpVaultDelete, "")

	v.log.Info("vault deleted")
	return nil
}

// Close ends any live session.
func (v *Vault) Close() {
	if s := v.ActiveSession(); s != nil {
		v.Logout(s, false)
	}
}

// Status is a snapshot for display.
type Status struct {
	Exists           bool
	KeyfilePresent   bool
	LockoutRemaining time.Duration
	Session          *Session
}

// Status reports vault existence, keyfile presence and lockout state.
func (v *Vault) Status() (*Status, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	meta, err := v.store.GetVaultMetadata()
	if err != nil {
		return nil, err
	}
	st := &Status{
		Exists:         meta.Exists,
		KeyfilePresent: keyfile.Exists(v.keyfilePath),
		Session:        v.session,
	}
	if _, remaining, err := v.guard.Check(v.now()); err == nil {
		st.LockoutRemaining = remaining
	}
	return st, nil
}

// normalizeSite trims and NFC-normalizes a site name so visually identical
// names map to one record.
func normalizeSite(site string) (string, error) {
	site = norm.NFC.String(strings.TrimSpace(site))
	if site == "" {
		return "", ErrSiteEmpty
	}
	if utf8.RuneCountInString(site) > MaxSiteLength {
		return "", ErrSiteTooLong
	}
	return site, nil
}

// checkAndWarnPermissions warns when the keyfile or data directory is
// readable by others. Advisory only.
func (v *Vault) checkAndWarnPermissions() {
	if info, err := os.Stat(v.keyfilePath); err == nil {
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			v.log.Warn("keyfile has insecure permissions", "path", v.keyfilePath, "perm", fmt.Sprintf("%04o", perm))
		}
	}
	if v.dataDir == "" {
		return
	}
	if info, err := os.Stat(v.dataDir); err == nil {
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			v.log.Warn("data directory has insecure permissions", "path", v.dataDir, "perm", fmt.Sprintf("%04o", perm))
		}
	}
}

func (v *Vault) ensureAuditKey(kf []byte) {
	if v.audit == nil || v.audit.HasKey() {
		return
	}
	if err := v.audit.SetKey(kf); err != nil {
		v.log.Warn("failed to initialize audit logger", "err", err)
	}
}

// Audit writes are best effort: a failure is logged, never returned.
func (v *Vault) auditSuccess(op, site string) {
	if v.audit == nil || !v.audit.HasKey() {
		return
	}
	if err := v.audit.LogSuccess(op, site); err != nil {
		v.log.Warn("failed to write audit event", "op", op, "err", err)
	}
}

func (v *Vault) auditError(op, site, code, msg string) {
	if v.audit == nil || !v.audit.HasKey() {
		return
	}
	if err := v.audit.LogError(op, site, code, msg); err != nil {
		v.log.Warn("failed to write audit event", "op", op, "err", err)
	}
}

func (v *Vault) auditDenied(op, reason string) {
	if v.audit == nil || !v.audit.HasKey() {
		return
	}
	if err := v.audit.LogDenied(op, reason); err != nil {
		v.log.Warn("failed to write audit event", "op", op, "err", err)
	}
}
