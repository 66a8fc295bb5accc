package security

import (
	"errors"
	"strings"
	"testing"
)

func TestGeneratePasswordDefault(t *testing.T) {
	password, err := GeneratePassword(DefaultOptions())
	if err != nil {
		t.Fatalf("GeneratePassword failed: %v", err)
	}
	if len(password) != DefaultLength {
		t.Errorf("length = %d, want %d", len(password), DefaultLength)
	}

	charset := DefaultOptions().Charset()
	for _, r := range password {
		if !strings.ContainsRune(charset, r) {
			t.Errorf("unexpected character %q", r)
		}
	}
}

func TestGeneratePasswordUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		password, err := GeneratePassword(DefaultOptions())
		if err != nil {
			t.Fatalf("GeneratePassword failed: %v", err)
		}
		if seen[password] {
			t.Fatalf("duplicate password generated: %s", password)
		}
		seen[password] = true
	}
}

func TestGeneratePasswordOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    GenerateOptions
		allowed string
	}{
		{"digits only", GenerateOptions{Length: 12, Digits: true}, CharsetDigits},
		{"letters", GenerateOptions{Length: 30, Lowercase: true, Uppercase: true}, CharsetLowercase + CharsetUppercase},
		{"exclude ambiguous", GenerateOptions{Length: 64, Lowercase: true, Digits: true, Exclude: "0o1l"}, "abcdefghijkmnpqrstuvwxyz23456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			password, err := GeneratePassword(tt.opts)
			if err != nil {
				t.Fatalf("GeneratePassword failed: %v", err)
			}
			if len(password) != tt.opts.Length {
				t.Errorf("length = %d, want %d", len(password), tt.opts.Length)
			}
			for _, r := range password {
				if !strings.ContainsRune(tt.allowed, r) {
					t.Errorf("character %q outside allowed set", r)
				}
			}
		})
	}
}

func TestGeneratePasswordErrors(t *testing.T) {
	tests := []struct {
		name string
		opts GenerateOptions
		want error
	}{
		{"too short", GenerateOptions{Length: MinLength - 1, Digits: true}, ErrLengthOutOfRange},
		{"too long", GenerateOptions{Length: MaxLength + 1, Digits: true}, ErrLengthOutOfRange},
		{"no classes", GenerateOptions{Length: 20}, ErrEmptyCharset},
		{"all excluded", GenerateOptions{Length: 20, Digits: true, Exclude: CharsetDigits}, ErrEmptyCharset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := GeneratePassword(tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("GeneratePassword error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStrength(t *testing.T) {
	tests := []struct {
		password string
		want     PasswordStrength
	}{
		{"", PasswordWeak},
		{"abc12", PasswordWeak},
		{"password", PasswordFair},
		{"Sup3r$ecret!", PasswordGood},
		{"correcthorsebattery", PasswordGood},
		{"correct horse battery staple", PasswordStrong},
		{"Tr0ub4dor&3-extended", PasswordStrong},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			if got := Strength(tt.password); got != tt.want {
				t.Errorf("Strength(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestStrengthString(t *testing.T) {
	if PasswordStrong.String() != "strong" || PasswordStrength(42).String() != "unknown" {
		t.Error("unexpected String output")
	}
}
