package security

import "unicode/utf8"

// PasswordStrength is an advisory rating. Nothing in spm refuses a password
// because of it.
type PasswordStrength int

const (
	PasswordWeak PasswordStrength = iota
	PasswordFair
	PasswordGood
	PasswordStrong
)

// String returns a human-readable representation of the password strength.
func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "weak"
	case PasswordFair:
		return "fair"
	case PasswordGood:
		return "good"
	case PasswordStrong:
		return "strong"
	default:
		return "unknown"
	}
}

// Strength rates a password by length first, per NIST SP 800-63B, with one
// step up for mixing at least three character classes.
func Strength(password string) PasswordStrength {
	var s PasswordStrength
	switch n := utf8.RuneCountInString(password); {
	case n >= 20:
		s = PasswordStrong
	case n >= 14:
		s = PasswordGood
	case n >= 8:
		s = PasswordFair
	default:
		return PasswordWeak
	}

	if s < PasswordStrong && classes(password) >= 3 {
		s++
	}
	return s
}

func classes(password string) int {
	var lower, upper, digit, other bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			other = true
		}
	}
	n := 0
	for _, b := range []bool{lower, upper, digit, other} {
		if b {
			n++
		}
	}
	return n
}
