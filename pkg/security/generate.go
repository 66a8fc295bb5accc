// Package security provides password generation and advisory strength
// ratings for spm.
package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Character sets
const (
	CharsetLowercase   = "abcdefghijklmnopqrstuvwxyz"
	CharsetUppercase   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	CharsetDigits      = "0123456789"
	CharsetPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// Generator limits
const (
	DefaultLength = 20
	MinLength     = 8
	MaxLength     = 256
)

var (
	ErrLengthOutOfRange = fmt.Errorf("security: length must be between %d and %d", MinLength, MaxLength)
	ErrEmptyCharset     = errors.New("security: character set is empty")
)

// GenerateOptions selects the character classes of a generated password.
// The zero value is not useful; start from DefaultOptions.
type GenerateOptions struct {
	Length      int
	Lowercase   bool
	Uppercase   bool
	Digits      bool
	Punctuation bool
	Exclude     string // characters never to emit
}

// DefaultOptions is 20 characters of letters, digits and punctuation.
func DefaultOptions() GenerateOptions {
	return GenerateOptions{
		Length:      DefaultLength,
		Lowercase:   true,
		Uppercase:   true,
		Digits:      true,
		Punctuation: true,
	}
}

// Charset returns the characters opts allows.
func (o GenerateOptions) Charset() string {
	var b strings.Builder
	if o.Lowercase {
		b.WriteString(CharsetLowercase)
	}
	if o.Uppercase {
		b.WriteString(CharsetUppercase)
	}
	if o.Digits {
		b.WriteString(CharsetDigits)
	}
	if o.Punctuation {
		b.WriteString(CharsetPunctuation)
	}
	if o.Exclude == "" {
		return b.String()
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(o.Exclude, r) {
			return -1
		}
		return r
	}, b.String())
}

// GeneratePassword returns a password drawn uniformly from opts.Charset()
// using crypto/rand.
func GeneratePassword(opts GenerateOptions) (string, error) {
	if opts.Length < MinLength || opts.Length > MaxLength {
		return "", ErrLengthOutOfRange
	}
	charset := opts.Charset()
	if charset == "" {
		return "", ErrEmptyCharset
	}

	n := big.NewInt(int64(len(charset)))
	out := make([]byte, opts.Length)
	for i := range out {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("security: failed to generate random number: %w", err)
		}
		out[i] = charset[idx.Int64()]
	}
	return string(out), nil
}
