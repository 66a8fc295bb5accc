package vault

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// LoginKind classifies the result of AttemptLogin.
type LoginKind int

const (
	LoginSuccess LoginKind = iota
	LoginWrongPassword
	LoginLockedOut
	LoginKeyfileInvalid
	LoginNoVault
	LoginError
)

// String returns a human-readable representation of the kind
func (k LoginKind) String() string {
	switch k {
	case LoginSuccess:
		return "success"
	case LoginWrongPassword:
		return "wrong_password"
	case LoginLockedOut:
		return "locked_out"
	case LoginKeyfileInvalid:
		return "keyfile_invalid"
	case LoginNoVault:
		return "no_vault"
	case LoginError:
		return "error"
	default:
		return "unknown"
	}
}

// LoginOutcome is returned by AttemptLogin.
type LoginOutcome struct {
	Kind LoginKind

	// Session is set for LoginSuccess.
	Session *Session

	// AttemptsLeft is set for LoginWrongPassword.
	AttemptsLeft int

	// Remaining is the cooldown left for LoginLockedOut.
	Remaining time.Duration

	// Err is set for LoginError.
	Err error
}

// RemainingSeconds rounds the cooldown up to whole seconds.
func (o LoginOutcome) RemainingSeconds() int {
	return int(math.Ceil(o.Remaining.Seconds()))
}

// Setup failure reasons carried by SetupError.
var (
	ErrVaultExists      = errors.New("vault: vault already exists")
	ErrEmptyPassword    = errors.New("vault: master password cannot be empty")
	ErrPasswordMismatch = errors.New("vault: passwords do not match")
	ErrKeyfileIO        = errors.New("vault: keyfile could not be written")
	ErrMarkerSeal       = errors.New("vault: keyfile marker could not be sealed")
	ErrPasswordHash     = errors.New("vault: master password could not be hashed")
	ErrSetupStore       = errors.New("vault: vault metadata could not be stored")
)

// SetupError is returned by SignUp. Reason is one of the setup sentinels;
// Err is the underlying cause, if any.
type SetupError struct {
	Reason error
	Err    error
}

func (e *SetupError) Error() string {
	if e.Err == nil {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%v: %v", e.Reason, e.Err)
}

// Unwrap exposes both the reason and the cause to errors.Is.
func (e *SetupError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

func setupErr(reason, cause error) error {
	return &SetupError{Reason: reason, Err: cause}
}
