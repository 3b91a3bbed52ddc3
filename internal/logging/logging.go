// Package logging constructs the component-prefixed stdlib loggers shared by
// the CLI, daemon, and relay entrypoints.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// New returns a logger prefixed with "[component] ", writing to stderr.
func New(component string) *log.Logger {
	return log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags)
}

// RedirectToFile points component's logger at path, appending, and returns a
// closer for the caller to defer. Mirrors the CLI's own stdio-mode log
// redirection: stderr output interferes with NDJSON batch mode the same way
// it interferes with MCP stdio framing.
func RedirectToFile(component, path string) (*log.Logger, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	logger := log.New(f, fmt.Sprintf("[%s] ", component), log.LstdFlags)
	return logger, func() { _ = f.Close() }, nil
}

// Discard returns a logger whose output goes nowhere, for the rare case where
// neither stderr nor a log file is usable and silent operation is preferable
// to crashing.
func Discard(component string) *log.Logger {
	return log.New(io.Discard, fmt.Sprintf("[%s] ", component), log.LstdFlags)
}
