package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mg2305/Secure-Password-Manager/pkg/security"
)

// withGenerateFlags resets the generate flags to their defaults for one test.
func withGenerateFlags(t *testing.T) {
	t.Helper()
	old := []interface{}{generateLength, generateCount, generateNoPunctuation, generateNoDigits,
		generateNoUppercase, generateNoLowercase, generateExclude, generateCopy}
	t.Cleanup(func() {
		generateLength = old[0].(int)
		generateCount = old[1].(int)
		generateNoPunctuation = old[2].(bool)
		generateNoDigits = old[3].(bool)
		generateNoUppercase = old[4].(bool)
		generateNoLowercase = old[5].(bool)
		generateExclude = old[6].(string)
		generateCopy = old[7].(bool)
	})

	generateLength = security.DefaultLength
	generateCount = defaultPasswordCount
	generateNoPunctuation, generateNoDigits, generateNoUppercase, generateNoLowercase = false, false, false, false
	generateExclude = ""
	generateCopy = false
}

func TestValidateGenerateFlags(t *testing.T) {
	tests := []struct {
		name        string
		length      int
		count       int
		exclude     string
		noLetters   bool
		expectError bool
	}{
		{name: "valid defaults", length: security.DefaultLength, count: defaultPasswordCount},
		{name: "minimum length", length: security.MinLength, count: 1},
		{name: "maximum length", length: security.MaxLength, count: 1},
		{name: "length too short", length: security.MinLength - 1, count: 1, expectError: true},
		{name: "length too long", length: security.MaxLength + 1, count: 1, expectError: true},
		{name: "count zero", length: 24, count: 0, expectError: true},
		{name: "count too high", length: 24, count: maxPasswordCount + 1, expectError: true},
		{name: "maximum count", length: 24, count: maxPasswordCount},
		{name: "exclude too long", length: 24, count: 1, exclude: strings.Repeat("a", maxExcludeLength+1), expectError: true},
		{name: "valid exclude", length: 24, count: 1, exclude: "0O1lI"},
		{name: "everything excluded", length: 24, count: 1, exclude: security.CharsetDigits, noLetters: true, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withGenerateFlags(t)
			generateLength = tt.length
			generateCount = tt.count
			generateExclude = tt.exclude
			if tt.noLetters {
				generateNoLowercase, generateNoUppercase, generateNoPunctuation = true, true, true
			}

			err := validateGenerateFlags()
			if tt.expectError && err == nil {
				t.Errorf("expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestExecuteGenerate(t *testing.T) {
	withGenerateFlags(t)
	generateLength = 32
	generateCount = 5
	generateNoPunctuation = true

	var out, errOut bytes.Buffer
	clip := &fakeClipboard{}
	if err := executeGenerate(&out, &errOut, clip); err != nil {
		t.Fatalf("executeGenerate failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d passwords, want 5", len(lines))
	}
	for _, pw := range lines {
		if len(pw) != 32 {
			t.Errorf("password length = %d, want 32", len(pw))
		}
		if strings.ContainsAny(pw, security.CharsetPunctuation) {
			t.Errorf("password %q contains punctuation", pw)
		}
	}
	if _, n := clip.last(); n != 0 {
		t.Error("clipboard must not be touched without --copy")
	}
}

func TestExecuteGenerateCopy(t *testing.T) {
	withGenerateFlags(t)
	generateCopy = true
	generateCount = 2

	var out, errOut bytes.Buffer
	clip := &fakeClipboard{}
	if err := executeGenerate(&out, &errOut, clip); err != nil {
		t.Fatalf("executeGenerate failed: %v", err)
	}
	first := strings.SplitN(out.String(), "\n", 2)[0]
	if last, n := clip.last(); n != 1 || last != first {
		t.Errorf("clipboard = %q (%d writes), want first password %q", last, n, first)
	}
	if !strings.Contains(errOut.String(), "Password copied to clipboard") {
		t.Errorf("missing copy notice: %q", errOut.String())
	}

	// A clipboard failure is a warning, not an error
	out.Reset()
	errOut.Reset()
	if err := executeGenerate(&out, &errOut, &fakeClipboard{err: errors.New("no display")}); err != nil {
		t.Fatalf("executeGenerate failed: %v", err)
	}
	if !strings.Contains(errOut.String(), "Warning: failed to copy to clipboard: no display") {
		t.Errorf("missing warning: %q", errOut.String())
	}
}
