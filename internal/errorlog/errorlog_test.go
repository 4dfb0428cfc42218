package errorlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors", "events.jsonl")
	sink := NewFileSink(path)

	sink.Record("job-1", "transcriber", 2, errors.New("whisper exited 1"))
	sink.Record("job-1", "transcriber", 3, errors.New("whisper exited 1 again"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}

	require.Len(t, events, 2)
	assert.Equal(t, "job-1", events[0].JobID)
	assert.Equal(t, "transcriber", events[0].Stage)
	assert.Equal(t, 2, events[0].Attempt)
	assert.Equal(t, "whisper exited 1", events[0].Message)
	assert.NotEmpty(t, events[0].Timestamp)
	assert.Equal(t, 3, events[1].Attempt)
}

func TestFileSinkRecord_NilError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	NewFileSink(path).Record("job-1", "merger", 1, nil)
	assert.NoFileExists(t, path)
}
