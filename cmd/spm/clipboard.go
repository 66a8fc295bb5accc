package main

import (
	"errors"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
)

var errClipboardUnsupported = errors.New("no clipboard utility available")

type clipboardWriter interface {
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}

// clipboardGuard copies secrets and clears them again after a delay or when
// the session ends, whichever comes first.
type clipboardGuard struct {
	w     clipboardWriter
	after time.Duration
	log   *log.Logger

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	dirty bool
}

func newClipboardGuard(w clipboardWriter, after time.Duration, logger *log.Logger) *clipboardGuard {
	return &clipboardGuard{w: w, after: after, log: logger}
}

// Copy places secret on the clipboard. A zero delay disables the timed clear.
func (c *clipboardGuard) Copy(secret string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.w.WriteAll(secret); err != nil {
		return err
	}
	c.dirty = true
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.after > 0 {
		gen := c.gen
		c.timer = time.AfterFunc(c.after, func() { c.clearIf(gen) })
	}
	return nil
}

// Clear empties the clipboard if spm put something there.
func (c *clipboardGuard) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// clearIf runs for the timer of copy gen; a later Copy makes it a no-op.
func (c *clipboardGuard) clearIf(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.clearLocked()
}

func (c *clipboardGuard) clearLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if !c.dirty {
		return
	}
	if err := c.w.WriteAll(""); err != nil {
		c.log.Warn("failed to clear clipboard", "err", err)
		return
	}
	c.dirty = false
}
