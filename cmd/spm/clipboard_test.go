package main

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestClipboardGuardClear(t *testing.T) {
	clip := &fakeClipboard{}
	g := newClipboardGuard(clip, 0, log.New(io.Discard))

	// Nothing copied, nothing cleared
	g.Clear()
	if _, n := clip.last(); n != 0 {
		t.Fatalf("Clear without Copy wrote %d times", n)
	}

	if err := g.Copy("s3cret"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	g.Clear()
	g.Clear()
	if last, n := clip.last(); n != 2 || last != "" {
		t.Errorf("got %d writes ending in %q, want copy then one clear", n, last)
	}
}

func TestClipboardGuardTimedClear(t *testing.T) {
	clip := &fakeClipboard{}
	g := newClipboardGuard(clip, 20*time.Millisecond, log.New(io.Discard))

	if err := g.Copy("s3cret"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if last, n := clip.last(); n == 2 && last == "" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("clipboard was not cleared after the delay")
}

func TestClipboardGuardCopyError(t *testing.T) {
	g := newClipboardGuard(&fakeClipboard{err: errors.New("no display")}, time.Minute, log.New(io.Discard))
	if err := g.Copy("s3cret"); err == nil {
		t.Error("expected copy error")
	}
	if g.dirty || g.timer != nil {
		t.Error("failed copy must not arm a clear")
	}
}

func TestClipboardGuardStaleTimer(t *testing.T) {
	clip := &fakeClipboard{}
	g := newClipboardGuard(clip, time.Hour, log.New(io.Discard))

	if err := g.Copy("first"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	first := g.gen
	if err := g.Copy("second"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	// The first copy's timer firing late must leave the second secret alone
	g.clearIf(first)
	if last, n := clip.last(); n != 2 || last != "second" {
		t.Errorf("got %d writes ending in %q, want the second secret untouched", n, last)
	}
	if !g.dirty || g.timer == nil {
		t.Error("stale timer disarmed the current clear")
	}

	g.clearIf(g.gen)
	if last, n := clip.last(); n != 3 || last != "" {
		t.Errorf("got %d writes ending in %q, want the current timer to clear", n, last)
	}
}
