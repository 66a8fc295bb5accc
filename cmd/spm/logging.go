package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// newLogger builds the diagnostics logger written to w at the given level.
func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          "spm",
		Level:           lvl,
		ReportTimestamp: lvl == log.DebugLevel,
	}), nil
}
