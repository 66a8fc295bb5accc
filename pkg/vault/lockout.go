package vault

import (
	"fmt"
	"time"
)

// Lockout policy. Variables so tests can shorten them.
var (
	// MaxAttempts is the number of wrong passwords that triggers a lockout.
	MaxAttempts = 5

	// CooldownWindow is how long logins are refused after a lockout.
	CooldownWindow = 300 * time.Second
)

// FailureStore persists the lockout timestamp.
type FailureStore interface {
	GetLastFailure() (time.Time, error)
	SetLastFailure(t time.Time) error
}

// GuardState is the state of a Guard at a given instant.
type GuardState int

const (
	GuardOpen GuardState = iota
	GuardLockedOut
)

// String returns a human-readable representation of the state
func (s GuardState) String() string {
	switch s {
	case GuardOpen:
		return "open"
	case GuardLockedOut:
		return "locked_out"
	default:
		return "unknown"
	}
}

// Guard tracks failed password attempts and decides whether a login may
// proceed. Only the threshold crossing is persisted; the attempt counter lives
// in memory and starts at zero for every Guard.
type Guard struct {
	store    FailureStore
	failures int
}

// NewGuard returns a Guard backed by store.
func NewGuard(store FailureStore) *Guard {
	return &Guard{store: store}
}

// Check reports whether a login may be attempted at now. In GuardLockedOut
// the remaining cooldown is returned and the password must not be checked.
func (g *Guard) Check(now time.Time) (GuardState, time.Duration, error) {
	last, err := g.store.GetLastFailure()
	if err != nil {
		return GuardOpen, 0, fmt.Errorf("vault: failed to read lockout state: %w", err)
	}

	elapsed := now.Sub(last)
	if elapsed < CooldownWindow {
		return GuardLockedOut, CooldownWindow - elapsed, nil
	}
	return GuardOpen, 0, nil
}

// RecordFailure counts a wrong password. On reaching MaxAttempts it persists
// now as the last failure, zeroes the counter and reports GuardLockedOut.
// Otherwise it returns the attempts left before lockout.
func (g *Guard) RecordFailure(now time.Time) (GuardState, int, error) {
	g.failures++
	if g.failures < MaxAttempts {
		return GuardOpen, MaxAttempts - g.failures, nil
	}

	g.failures = 0
	if err := g.store.SetLastFailure(now); err != nil {
		return GuardLockedOut, 0, fmt.Errorf("vault: failed to record lockout: %w", err)
	}
	return GuardLockedOut, 0, nil
}

// Reset zeroes the in-memory counter after a successful password check.
func (g *Guard) Reset() {
	g.failures = 0
}

// Failures returns the current in-memory count.
func (g *Guard) Failures() int {
	return g.failures
}
