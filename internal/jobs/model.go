// Package jobs provides the durable job state model for the transcription
// pipeline: the state record persisted as job_state.json, the on-disk layout
// of a job directory, the store that round-trips state through disk and an
// optional Redis mirror, and the per-job append-only log.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a transcription job.
type Status string

const (
	// StatusQueued indicates the job is waiting for the splitter.
	StatusQueued Status = "queued"
	// StatusSplitting indicates the source is being normalized and chunked.
	StatusSplitting Status = "splitting"
	// StatusTranscribing indicates chunks are being transcribed.
	StatusTranscribing Status = "transcribing"
	// StatusMerging indicates partial transcripts are being merged.
	StatusMerging Status = "merging"
	// StatusPackaging indicates the deliverable bundle is being built.
	StatusPackaging Status = "packaging"
	// StatusDone indicates the job finished successfully.
	StatusDone Status = "done"
	// StatusFailed indicates the job exhausted its retries.
	StatusFailed Status = "failed"
	// StatusCanceled indicates the job was canceled by the caller.
	StatusCanceled Status = "canceled"
)

// statusRank orders the working states so that progression never regresses.
var statusRank = map[Status]int{
	StatusQueued:       0,
	StatusSplitting:    1,
	StatusTranscribing: 2,
	StatusMerging:      3,
	StatusPackaging:    4,
	StatusDone:         5,
}

// IsTerminal returns true for done, failed, and canceled.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCanceled
}

// IsWorking returns true for the four in-flight pipeline stages.
func (s Status) IsWorking() bool {
	switch s {
	case StatusSplitting, StatusTranscribing, StatusMerging, StatusPackaging:
		return true
	}
	return false
}

// canTransition reports whether moving from one status to another preserves
// the progression invariant. Terminal states are absorbing; failed and
// canceled may supersede any non-terminal state.
func canTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	if to == StatusFailed || to == StatusCanceled {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// InputType identifies how the source media reaches the service.
type InputType string

const (
	// InputURL points at a remote streaming resource.
	InputURL InputType = "url"
	// InputPath points at a file on the local filesystem.
	InputPath InputType = "path"
	// InputUpload means the intake layer already placed the bytes on disk.
	InputUpload InputType = "upload"
)

// Input is the tagged input descriptor of a job.
type Input struct {
	Type  InputType `json:"type"`
	Value string    `json:"value"`
}

// Options control segmentation, transcription, and packaging of one job.
type Options struct {
	Language           string `json:"language"`
	ChunkMode          string `json:"chunk_mode"`
	MaxParallelChunks  int    `json:"max_parallel_chunks"`
	ProduceJSON        bool   `json:"produce_json"`
	ProduceVTT         bool   `json:"produce_vtt"`
	ProducePDF         bool   `json:"produce_pdf"`
	CookiesFromBrowser string `json:"cookies_from_browser,omitempty"`
}

// DefaultOptions returns the option set used when the caller omits options.
func DefaultOptions(language string) Options {
	return Options{
		Language:          language,
		ChunkMode:         "silence",
		MaxParallelChunks: 2,
		ProduceJSON:       true,
		ProduceVTT:        true,
		ProducePDF:        true,
	}
}

// Progress tracks chunk completion for one job.
// Percent is floor(100*done/total) when total > 0, else 0.
type Progress struct {
	ChunksTotal int `json:"chunks_total"`
	ChunksDone  int `json:"chunks_done"`
	Percent     int `json:"percent"`
}

// Timestamps are ISO-8601 UTC strings. StartedAt is stamped once on the
// first transition into a working status; FinishedAt once on the first
// transition into a terminal status.
type Timestamps struct {
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// Result describes the finished deliverable.
type Result struct {
	ZipPath      string `json:"zip_path"`
	DownloadName string `json:"download_name"`
	ZipURL       string `json:"zip_url,omitempty"`
}

// State is the durable record for one job; job_state.json is its source of
// truth and the Redis mirror only accelerates reads.
type State struct {
	JobID      string     `json:"job_id"`
	Status     Status     `json:"status"`
	Progress   Progress   `json:"progress"`
	Timestamps Timestamps `json:"timestamps"`
	Input      Input      `json:"input"`
	Options    Options    `json:"options"`
	Errors     []string   `json:"errors"`
	Result     *Result    `json:"result,omitempty"`
}

// NowISO returns the current UTC time formatted as ISO-8601.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewState creates a queued job state with a fresh UUID.
func NewState(input Input, options Options) *State {
	now := NowISO()
	return &State{
		JobID:  uuid.NewString(),
		Status: StatusQueued,
		Timestamps: Timestamps{
			CreatedAt: now,
			UpdatedAt: now,
		},
		Input:   input,
		Options: options,
		Errors:  []string{},
	}
}
