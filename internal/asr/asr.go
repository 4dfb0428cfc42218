// Package asr transcribes audio chunks. Engines implement ChunkTranscriber
// and return segments on the chunk's own timeline; BuildPartial shifts them
// to the job timeline, normalizes their text and assembles the per-chunk
// partial result that the merger consumes.
package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sealium/transcription-api/internal/fsutil"
	"github.com/sealium/transcription-api/internal/merge"
	"github.com/sealium/transcription-api/internal/textutil"
)

// Engine names accepted by TRANSCRIPTION_ENGINE.
const (
	EngineWhisperCLI = "whisper-cli"
	EngineOpenAI     = "openai"
)

// RawSegment is one transcribed span relative to the start of a chunk.
type RawSegment struct {
	Start float64
	End   float64
	Text  string
}

// ChunkTranscriber turns one WAV chunk into raw segments. Implementations
// must be safe for concurrent use across chunks.
type ChunkTranscriber interface {
	TranscribeChunk(ctx context.Context, wavPath, language string) ([]RawSegment, error)
}

// Partial is the persisted result of transcribing one chunk, with segment
// times already shifted to the job timeline.
type Partial struct {
	ChunkIndex int                  `json:"chunk_index"`
	ChunkStart float64              `json:"chunk_start"`
	ChunkEnd   float64              `json:"chunk_end"`
	Segments   []merge.TimedSegment `json:"segments"`
	Text       string               `json:"text"`
}

// BuildPartial converts raw chunk-relative segments to a Partial: times are
// offset by the chunk start, text is normalized to plain ASCII, and segments
// that end up empty or inverted are dropped.
func BuildPartial(chunkIndex int, chunkStart, chunkEnd float64, raw []RawSegment) Partial {
	segments := make([]merge.TimedSegment, 0, len(raw))
	texts := make([]string, 0, len(raw))

	for _, r := range raw {
		text := textutil.RemoveDiacriticsToASCII(r.Text)
		if text == "" || r.End <= r.Start {
			continue
		}
		segments = append(segments, merge.TimedSegment{
			Start: chunkStart + r.Start,
			End:   chunkStart + r.End,
			Text:  text,
		})
		texts = append(texts, text)
	}

	return Partial{
		ChunkIndex: chunkIndex,
		ChunkStart: chunkStart,
		ChunkEnd:   chunkEnd,
		Segments:   segments,
		Text:       strings.Join(texts, " "),
	}
}

// WritePartial persists a partial result atomically, so a crash mid-write
// never leaves a half-written file that a retry would trust.
func WritePartial(path string, p Partial) error {
	payload, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal partial: %w", err)
	}
	return fsutil.WriteFileAtomic(path, payload, 0o644)
}

// ReadPartial loads one partial result file.
func ReadPartial(path string) (Partial, error) {
	var p Partial
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read partial: %w", err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parse partial %s: %w", path, err)
	}
	return p, nil
}
