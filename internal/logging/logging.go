// Package logging sets up the application logger. The TUI owns the
// terminal, so interactive runs log to a file (or nowhere) and never to
// stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// NewStderr returns a logger for non-interactive commands.
func NewStderr() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
}

// NewFile returns a logger writing to path, creating parent directories
// as needed. An empty path yields a logger that discards everything,
// which is the right default while the TUI owns the terminal. The
// returned closer releases the file.
func NewFile(path string) (*log.Logger, func() error, error) {
	if path == "" {
		logger := log.NewWithOptions(io.Discard, log.Options{})
		return logger, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
	})
	return logger, f.Close, nil
}
