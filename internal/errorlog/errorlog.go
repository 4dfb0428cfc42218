// Package errorlog records structured per-job error events so failed jobs
// can be diagnosed after the fact without trawling service logs.
package errorlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is one recorded failure.
type Event struct {
	Timestamp string `json:"timestamp"`
	JobID     string `json:"job_id"`
	Stage     string `json:"stage"`
	Attempt   int    `json:"attempt,omitempty"`
	Message   string `json:"message"`
}

// Sink receives failure events.
type Sink interface {
	Record(jobID, stage string, attempt int, err error)
}

// FileSink appends events to a JSON-lines file.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates a sink writing to path; parent directories are
// created on first write.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Record implements Sink. Write failures are swallowed: error reporting
// must never take down the stage that is reporting.
func (s *FileSink) Record(jobID, stage string, attempt int, err error) {
	if err == nil {
		return
	}

	event := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		JobID:     jobID,
		Stage:     stage,
		Attempt:   attempt,
		Message:   err.Error(),
	}

	payload, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if mkErr := os.MkdirAll(filepath.Dir(s.path), 0o750); mkErr != nil {
		return
	}
	f, openErr := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if openErr != nil {
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "%s\n", payload)
}

// Discard is a Sink that drops everything; useful in tests.
type Discard struct{}

func (Discard) Record(string, string, int, error) {}

var (
	_ Sink = (*FileSink)(nil)
	_ Sink = Discard{}
)
