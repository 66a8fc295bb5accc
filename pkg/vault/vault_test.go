package vault

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mg2305/Secure-Password-Manager/pkg/audit"
	"github.com/mg2305/Secure-Password-Manager/pkg/crypto"
	"github.com/mg2305/Secure-Password-Manager/pkg/keyfile"
	"github.com/mg2305/Secure-Password-Manager/pkg/store"
)

const testPassword = "Sup3r$ecret!"

func TestMain(m *testing.M) {
	// Production Argon2 costs make the suite take minutes
	crypto.VaultKDF = crypto.Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: crypto.KeyLength}
	crypto.PasswordHashing = crypto.Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 32}
	os.Exit(m.Run())
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// manualTicker hands the watchdog ticks only when the test asks.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) start(time.Duration) (<-chan time.Time, func()) {
	return m.ch, func() { m.stopped.Store(true) }
}

// tick delivers a poll and waits until the watchdog has acted on it. The
// second send only completes once the first tick has been fully handled.
func (m *manualTicker) tick(t *testing.T, s *Session) {
	t.Helper()
	for i := 0; i < 2; i++ {
		select {
		case m.ch <- time.Time{}:
		case <-s.Done():
			return
		case <-time.After(2 * time.Second):
			t.Fatal("watchdog did not accept tick")
		}
	}
}

type testEnv struct {
	vault   *Vault
	store   store.Store
	clock   *fakeClock
	ticker  *manualTicker
	keyfile string
	dataDir string
	audit   *audit.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	clock := newFakeClock()

	st, err := store.Open(store.BackendSQLite, filepath.Join(dir, "data", "spm.db"), InitialLastFailure(clock.Now()))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	env := &testEnv{
		store:   st,
		clock:   clock,
		ticker:  newManualTicker(),
		keyfile: filepath.Join(dir, "secure_pm", "keyfile.key"),
		dataDir: filepath.Join(dir, "data"),
		audit:   audit.NewLogger(filepath.Join(dir, "data", "audit")),
	}
	env.vault = env.newVault(t)
	return env
}

// newVault opens a second Vault over the same store, as a new process would.
func (e *testEnv) newVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(Options{
		Store:       e.store,
		KeyfilePath: e.keyfile,
		DataDir:     e.dataDir,
		Audit:       e.audit,
		Now:         e.clock.Now,
		NewTicker:   e.ticker.start,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(v.Close)
	return v
}

func (e *testEnv) signUp(t *testing.T) {
	t.Helper()
	if err := e.vault.SignUp(testPassword, testPassword); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
}

func (e *testEnv) login(t *testing.T) *Session {
	t.Helper()
	out := e.vault.AttemptLogin(testPassword)
	if out.Kind != LoginSuccess {
		t.Fatalf("AttemptLogin = %v (err %v), want success", out.Kind, out.Err)
	}
	return out.Session
}

func TestNewRequiresStoreAndKeyfile(t *testing.T) {
	if _, err := New(Options{KeyfilePath: "k"}); err == nil {
		t.Error("expected error without store")
	}
	env := newTestEnv(t)
	if _, err := New(Options{Store: env.store}); err == nil {
		t.Error("expected error without keyfile path")
	}
}

func TestSignUp(t *testing.T) {
	env := newTestEnv(t)

	exists, err := env.vault.Exists()
	if err != nil || exists {
		t.Fatalf("Exists before sign-up = %v, %v; want false, nil", exists, err)
	}

	env.signUp(t)

	data, err := os.ReadFile(env.keyfile)
	if err != nil {
		t.Fatalf("keyfile not created: %v", err)
	}
	if len(data) != keyfile.Size {
		t.Errorf("keyfile length = %d, want %d", len(data), keyfile.Size)
	}

	meta, err := env.store.GetVaultMetadata()
	if err != nil {
		t.Fatalf("GetVaultMetadata failed: %v", err)
	}
	if !meta.Exists || meta.MasterHash == "" || len(meta.EncryptedMarker) == 0 {
		t.Errorf("metadata after sign-up = %+v", meta)
	}
	if !crypto.CheckMarker(meta.EncryptedMarker, data, Marker) {
		t.Error("stored marker does not open with the keyfile")
	}

	err = env.vault.SignUp("another", "another")
	if !errors.Is(err, ErrVaultExists) {
		t.Errorf("second SignUp error = %v, want ErrVaultExists", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		want     error
	}{
		{"empty password", "", "", ErrEmptyPassword},
		{"mismatch", testPassword, "Sup3r$ecret?", ErrPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			err := env.vault.SignUp(tt.password, tt.confirm)
			if !errors.Is(err, tt.want) {
				t.Fatalf("SignUp error = %v, want %v", err, tt.want)
			}
			var setupErr *SetupError
			if !errors.As(err, &setupErr) {
				t.Errorf("SignUp error %T is not a *SetupError", err)
			}
			if keyfile.Exists(env.keyfile) {
				t.Error("no keyfile should be written on a rejected sign-up")
			}
		})
	}
}

func TestSignUpKeyfileIO(t *testing.T) {
	env := newTestEnv(t)

	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	env.vault.keyfilePath = filepath.Join(blocker, "keyfile.key")

	err := env.vault.SignUp(testPassword, testPassword)
	if !errors.Is(err, ErrKeyfileIO) {
		t.Fatalf("SignUp error = %v, want ErrKeyfileIO", err)
	}
	if !errors.Is(err, keyfile.ErrIO) {
		t.Errorf("SignUp error should carry the keyfile cause, got %v", err)
	}
	if exists, _ := env.vault.Exists(); exists {
		t.Error("vault must not exist after failed sign-up")
	}
}

func TestSignUpPasswordHash(t *testing.T) {
	old := crypto.PasswordHashing
	crypto.PasswordHashing.Threads = 0
	defer func() { crypto.PasswordHashing = old }()

	env := newTestEnv(t)
	err := env.vault.SignUp(testPassword, testPassword)
	if !errors.Is(err, ErrPasswordHash) {
		t.Fatalf("SignUp error = %v, want ErrPasswordHash", err)
	}
	if errors.Is(err, ErrSetupStore) {
		t.Errorf("hashing failure reported as a store failure: %v", err)
	}
	if keyfile.Exists(env.keyfile) {
		t.Error("no keyfile should be written when hashing fails")
	}
	if exists, _ := env.vault.Exists(); exists {
		t.Error("vault must not exist after failed sign-up")
	}
}

func TestAttemptLoginNoVault(t *testing.T) {
	env := newTestEnv(t)
	if out := env.vault.AttemptLogin(testPassword); out.Kind != LoginNoVault {
		t.Errorf("AttemptLogin = %v, want %v", out.Kind, LoginNoVault)
	}
}

// Sign up, log in, then save, retrieve and delete one credential.
func TestScenario(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)

	s := env.login(t)
	if len(s.key) != crypto.KeyLength {
		t.Fatalf("session key length = %d, want %d", len(s.key), crypto.KeyLength)
	}
	if s.State() != SessionRunning {
		t.Errorf("session state = %v, want running", s.State())
	}

	if err := env.vault.SaveCredential(s, "example.com", "alice", "hunter2-but-longer"); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}

	// Stored secret is ciphertext
	cred, err := env.store.GetCredential("example.com")
	if err != nil {
		t.Fatalf("store.GetCredential failed: %v", err)
	}
	if bytes.Contains(cred.Secret, []byte("hunter2")) {
		t.Error("secret stored in clear")
	}

	entry, err := env.vault.RetrieveCredential(s, "example.com")
	if err != nil {
		t.Fatalf("RetrieveCredential failed: %v", err)
	}
	if string(entry.Secret) != "hunter2-but-longer" || entry.Username != "alice" {
		t.Errorf("RetrieveCredential = %q/%q, want alice/hunter2-but-longer", entry.Username, entry.Secret)
	}

	if err := env.vault.DeleteCredential(s, "example.com"); err != nil {
		t.Fatalf("DeleteCredential failed: %v", err)
	}
	if _, err := env.vault.RetrieveCredential(s, "example.com"); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("RetrieveCredential after delete error = %v, want ErrCredentialNotFound", err)
	}
	if err := env.vault.DeleteCredential(s, "example.com"); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("second DeleteCredential error = %v, want ErrCredentialNotFound", err)
	} else if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteCredential error = %v, want it to match store.ErrNotFound", err)
	}

	env.vault.Logout(s, false)
	if s.State() != SessionStopped {
		t.Errorf("state after logout = %v, want stopped", s.State())
	}
	if s.key != nil {
		t.Error("session key should be discarded on logout")
	}
}

func TestSameKeyAcrossLogins(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)

	s := env.login(t)
	if err := env.vault.SaveCredential(s, "example.com", "", "persisted"); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}
	env.vault.Logout(s, false)

	// A fresh process re-derives the same key
	v2 := env.newVault(t)
	out := v2.AttemptLogin(testPassword)
	if out.Kind != LoginSuccess {
		t.Fatalf("AttemptLogin = %v", out.Kind)
	}
	entry, err := v2.RetrieveCredential(out.Session, "example.com")
	if err != nil {
		t.Fatalf("RetrieveCredential failed: %v", err)
	}
	if string(entry.Secret) != "persisted" {
		t.Errorf("secret = %q, want persisted", entry.Secret)
	}
}

func TestLockoutAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)

	for want := MaxAttempts - 1; want >= 1; want-- {
		out := env.vault.AttemptLogin("wrong")
		if out.Kind != LoginWrongPassword {
			t.Fatalf("AttemptLogin = %v, want wrong_password", out.Kind)
		}
		if out.AttemptsLeft != want {
			t.Errorf("AttemptsLeft = %d, want %d", out.AttemptsLeft, want)
		}
	}

	out := env.vault.AttemptLogin("wrong")
	if out.Kind != LoginLockedOut {
		t.Fatalf("attempt %d = %v, want locked_out", MaxAttempts, out.Kind)
	}
	if out.Remaining != CooldownWindow {
		t.Errorf("Remaining = %v, want %v", out.Remaining, CooldownWindow)
	}

	last, err := env.store.GetLastFailure()
	if err != nil {
		t.Fatalf("GetLastFailure failed: %v", err)
	}
	if !last.Equal(env.clock.Now()) {
		t.Errorf("last failure = %v, want %v", last, env.clock.Now())
	}

	// Even the correct password is refused during the cooldown
	env.clock.Advance(CooldownWindow - time.Second)
	out = env.vault.AttemptLogin(testPassword)
	if out.Kind != LoginLockedOut {
		t.Fatalf("AttemptLogin during cooldown = %v, want locked_out", out.Kind)
	}
	if out.RemainingSeconds() != 1 {
		t.Errorf("RemainingSeconds = %d, want 1", out.RemainingSeconds())
	}

	// The lockout survives a restart
	if out := env.newVault(t).AttemptLogin(testPassword); out.Kind != LoginLockedOut {
		t.Errorf("AttemptLogin from new process = %v, want locked_out", out.Kind)
	}

	env.clock.Advance(time.Second)
	if out := env.vault.AttemptLogin(testPassword); out.Kind != LoginSuccess {
		t.Errorf("AttemptLogin after cooldown = %v, want success", out.Kind)
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)

	for i := 0; i < MaxAttempts-1; i++ {
		env.vault.AttemptLogin("wrong")
	}
	s := env.login(t)
	if env.vault.guard.Failures() != 0 {
		t.Errorf("failures after success = %d, want 0", env.vault.guard.Failures())
	}
	env.vault.Logout(s, false)

	out := env.vault.AttemptLogin("wrong")
	if out.Kind != LoginWrongPassword || out.AttemptsLeft != MaxAttempts-1 {
		t.Errorf("AttemptLogin = %v/%d, want wrong_password/%d", out.Kind, out.AttemptsLeft, MaxAttempts-1)
	}
}

func TestKeyfileInvalid(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(t *testing.T, path string)
	}{
		{
			name: "missing",
			tamper: func(t *testing.T, path string) {
				if err := os.Remove(path); err != nil {
					t.Fatalf("remove failed: %v", err)
				}
			},
		},
		{
			name: "swapped",
			tamper: func(t *testing.T, path string) {
				if err := keyfile.Generate(path); err != nil {
					t.Fatalf("Generate failed: %v", err)
				}
			},
		},
		{
			name: "truncated",
			tamper: func(t *testing.T, path string) {
				if err := os.WriteFile(path, []byte("short"), 0600); err != nil {
					t.Fatalf("write failed: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.signUp(t)
			tt.tamper(t, env.keyfile)

			out := env.vault.AttemptLogin(testPassword)
			if out.Kind != LoginKeyfileInvalid {
				t.Fatalf("AttemptLogin = %v, want keyfile_invalid", out.Kind)
			}
			if out.Session != nil {
				t.Error("no session may be created")
			}
			if env.vault.ActiveSession() != nil {
				t.Error("vault should hold no session")
			}
		})
	}
}

func TestSecondLoginRejected(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)
	s := env.login(t)

	out := env.vault.AttemptLogin(testPassword)
	if out.Kind != LoginError || !errors.Is(out.Err, ErrSessionActive) {
		t.Errorf("second AttemptLogin = %v/%v, want error/ErrSessionActive", out.Kind, out.Err)
	}

	env.vault.Logout(s, false)
	if out := env.vault.AttemptLogin(testPassword); out.Kind != LoginSuccess {
		t.Errorf("AttemptLogin after logout = %v, want success", out.Kind)
	}
}

func TestOperationsRequireSession(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)
	s := env.login(t)
	env.vault.Logout(s, false)

	tests := []struct {
		name string
		sess *Session
	}{
		{"nil session", nil},
		{"ended session", s},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := env.vault.SaveCredential(tt.sess, "a.com", "", "x"); !errors.Is(err, ErrNoSession) {
				t.Errorf("SaveCredential error = %v, want ErrNoSession", err)
			}
			if _, err := env.vault.RetrieveCredential(tt.sess, "a.com"); !errors.Is(err, ErrNoSession) {
				t.Errorf("RetrieveCredential error = %v, want ErrNoSession", err)
			}
			if err := env.vault.DeleteCredential(tt.sess, "a.com"); !errors.Is(err, ErrNoSession) {
				t.Errorf("DeleteCredential error = %v, want ErrNoSession", err)
			}
			if _, err := env.vault.ListSites(tt.sess); !errors.Is(err, ErrNoSession) {
				t.Errorf("ListSites error = %v, want ErrNoSession", err)
			}
		})
	}
}

func TestSaveCredentialValidation(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)
	s := env.login(t)

	if err := env.vault.SaveCredential(s, "example.com", "", "first"); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}

	long := make([]byte, MaxSiteLength+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name   string
		site   string
		user   string
		secret string
		want   error
	}{
		{"duplicate", "example.com", "", "second", ErrCredentialExists},
		{"duplicate after trim", "  example.com ", "", "second", ErrCredentialExists},
		{"empty site", "   ", "", "x", ErrSiteEmpty},
		{"long site", string(long), "", "x", ErrSiteTooLong},
		{"empty secret", "other.com", "", "", ErrSecretEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.vault.SaveCredential(s, tt.site, tt.user, tt.secret)
			if !errors.Is(err, tt.want) {
				t.Errorf("SaveCredential error = %v, want %v", err, tt.want)
			}
			if tt.want == ErrCredentialExists && !errors.Is(err, store.ErrAlreadyExists) {
				t.Errorf("SaveCredential error = %v, want it to match store.ErrAlreadyExists", err)
			}
		})
	}
}

func TestSiteNormalization(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)
	s := env.login(t)

	// U+00E9 versus e followed by U+0301
	if err := env.vault.SaveCredential(s, "caf\u00e9.example", "", "secret"); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}
	entry, err := env.vault.RetrieveCredential(s, "cafe\u0301.example")
	if err != nil {
		t.Fatalf("RetrieveCredential with decomposed name failed: %v", err)
	}
	if string(entry.Secret) != "secret" {
		t.Errorf("secret = %q, want secret", entry.Secret)
	}
}

func TestListSitesOrder(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)
	s := env.login(t)

	for _, site := range []string{"c.com", "a.com", "b.com"} {
		if err := env.vault.SaveCredential(s, site, "", "pw-"+site); err != nil {
			t.Fatalf("SaveCredential(%s) failed: %v", site, err)
		}
	}
	for _, site := range []string{"c.com", "a.com"} {
		if err := env.vault.DeleteCredential(s, site); err != nil {
			t.Fatalf("DeleteCredential(%s) failed: %v", site, err)
		}
	}

	sites, err := env.vault.ListSites(s)
	if err != nil {
		t.Fatalf("ListSites failed: %v", err)
	}
	if len(sites) != 1 || sites[0] != "b.com" {
		t.Errorf("ListSites = %v, want [b.com]", sites)
	}
}

func TestRetrieveCorruptedCredential(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)
	s := env.login(t)

	bogus := make([]byte, crypto.Overhead+4)
	if err := env.store.InsertCredential(store.Credential{Site: "broken.com", Secret: bogus}); err != nil {
		t.Fatalf("InsertCredential failed: %v", err)
	}

	if _, err := env.vault.RetrieveCredential(s, "broken.com"); !errors.Is(err, ErrCredentialCorrupted) {
		t.Errorf("RetrieveCredential error = %v, want ErrCredentialCorrupted", err)
	}
}

func TestDeleteVault(t *testing.T) {
	env := newTestEnv(t)

	if err := env.vault.DeleteVault(); !errors.Is(err, ErrNoVault) {
		t.Errorf("DeleteVault without vault = %v, want ErrNoVault", err)
	}

	env.signUp(t)
	s := env.login(t)
	if err := env.vault.SaveCredential(s, "example.com", "", "x"); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}

	if err := env.vault.DeleteVault(); !errors.Is(err, ErrSessionActive) {
		t.Errorf("DeleteVault during session = %v, want ErrSessionActive", err)
	}
	env.vault.Logout(s, false)

	if err := env.vault.DeleteVault(); err != nil {
		t.Fatalf("DeleteVault failed: %v", err)
	}
	if keyfile.Exists(env.keyfile) {
		t.Error("keyfile should be removed")
	}
	if exists, _ := env.vault.Exists(); exists {
		t.Error("vault should no longer exist")
	}
	if sites, _ := env.store.ListSites(); len(sites) != 0 {
		t.Errorf("credentials should be removed, got %v", sites)
	}
	if out := env.vault.AttemptLogin(testPassword); out.Kind != LoginNoVault {
		t.Errorf("AttemptLogin after delete = %v, want no_vault", out.Kind)
	}

	// A new vault can be created and its lockout is not armed
	env.signUp(t)
	if out := env.vault.AttemptLogin(testPassword); out.Kind != LoginSuccess {
		t.Errorf("AttemptLogin on new vault = %v, want success", out.Kind)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)

	st, err := env.vault.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Exists || st.KeyfilePresent || st.LockoutRemaining != 0 || st.Session != nil {
		t.Errorf("Status before sign-up = %+v", st)
	}

	env.signUp(t)
	for i := 0; i < MaxAttempts; i++ {
		env.vault.AttemptLogin("wrong")
	}

	st, err = env.vault.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !st.Exists || !st.KeyfilePresent || st.LockoutRemaining != CooldownWindow {
		t.Errorf("Status after lockout = %+v", st)
	}
}

func TestAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)

	env.vault.AttemptLogin("wrong")
	s := env.login(t)
	if err := env.vault.SaveCredential(s, "example.com", "", "x"); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}
	if _, err := env.vault.RetrieveCredential(s, "example.com"); err != nil {
		t.Fatalf("RetrieveCredential failed: %v", err)
	}
	env.vault.Logout(s, false)

	events, err := env.audit.ListEvents(0, time.Time{})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	want := []string{
		audit.OpVaultSignup,
		audit.OpVaultLoginFailed,
		audit.OpVaultLogin,
		audit.OpCredentialSave,
		audit.OpCredentialGet,
		audit.OpSessionLogout,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d audit events, want %d: %+v", len(events), len(want), events)
	}
	for i, op := range want {
		if events[i].Operation != op {
			t.Errorf("event %d = %s, want %s", i, events[i].Operation, op)
		}
	}
	if events[3].SessionID != s.ID() {
		t.Errorf("credential event session = %q, want %q", events[3].SessionID, s.ID())
	}

	result, err := env.audit.Verify()
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("audit chain invalid: %v", result.Errors)
	}
}

type resetFailingStore struct {
	store.Store
}

func (resetFailingStore) Reset(time.Time) error { return errors.New("disk full") }

func TestDeleteVaultFailureAudit(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)
	env.store = resetFailingStore{env.store}
	env.vault = env.newVault(t)

	if err := env.vault.DeleteVault(); err == nil {
		t.Fatal("expected DeleteVault to fail when the store cannot be reset")
	}

	events, err := env.audit.ListEvents(0, time.Time{})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	var deletes []audit.Event
	for _, e := range events {
		if e.Operation == audit.OpVaultDelete {
			deletes = append(deletes, e)
		}
	}
	if len(deletes) != 1 || deletes[0].Result != audit.ResultError {
		t.Fatalf("delete events = %+v, want one error event", deletes)
	}
	if deletes[0].Error == nil || deletes[0].Error.Code != "RESET_FAILED" {
		t.Errorf("delete error = %+v, want RESET_FAILED", deletes[0].Error)
	}
}

func TestDeleteVaultAuditsSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t)
	if err := env.vault.DeleteVault(); err != nil {
		t.Fatalf("DeleteVault failed: %v", err)
	}

	events, err := env.audit.ListEvents(0, time.Time{})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	last := events[len(events)-1]
	if last.Operation != audit.OpVaultDelete || last.Result != audit.ResultSuccess {
		t.Errorf("last event = %s/%s, want %s/%s", last.Operation, last.Result, audit.OpVaultDelete, audit.ResultSuccess)
	}
}
