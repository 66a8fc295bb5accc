package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads answers from the user. Hidden input uses the terminal when
// fd refers to one and falls back to plain lines for piped input.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int // -1 when input is not a terminal
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
	}
	return p
}

// line prints prompt and reads one line, trimming the line ending.
// io.EOF is returned only when no input at all was read.
func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	s, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		if s == "" {
			return "", io.EOF
		}
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r"), nil
}

// password reads without echo on a terminal.
func (p *prompter) password(prompt string) (string, error) {
	if p.fd < 0 {
		return p.line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// confirm asks a yes/no question; anything but y or yes is no.
func (p *prompter) confirm(prompt string) (bool, error) {
	answer, err := p.line(prompt + " [y/N]: ")
	if err != nil {
		return false, err
	}
	return isYes(answer), nil
}

func isYes(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// saveTerminal returns a func restoring the terminal mode, so an
// interrupted hidden prompt does not leave echo off.
func (p *prompter) saveTerminal() func() {
	if p.fd < 0 {
		return func() {}
	}
	state, err := term.GetState(p.fd)
	if err != nil {
		return func() {}
	}
	return func() { _ = term.Restore(p.fd, state) }
}
