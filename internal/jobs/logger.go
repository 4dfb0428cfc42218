package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Logger appends timestamped lines to the per-job log file. Each stage
// worker opens its own Logger; lines are flushed per write so a crash never
// loses more than the in-flight line.
type Logger struct {
	path string
}

// NewLogger creates a logger for the given log file path, creating the
// parent directory if needed.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &Logger{path: path}, nil
}

// Write appends one line formatted as "[<ISO-8601 UTC>] <message>".
func (l *Logger) Write(message string) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open job log: %w", err)
	}
	defer func() { _ = f.Close() }()

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := fmt.Fprintf(f, "[%s] %s\n", ts, message); err != nil {
		return fmt.Errorf("append job log: %w", err)
	}
	return nil
}

// Writef formats and appends one line.
func (l *Logger) Writef(format string, args ...any) error {
	return l.Write(fmt.Sprintf(format, args...))
}
