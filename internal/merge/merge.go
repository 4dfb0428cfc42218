// Package merge combines per-chunk transcription segments into one ordered,
// overlap-free transcript and writes the final text, JSON and VTT outputs.
package merge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sealium/transcription-api/internal/fsutil"
	"github.com/sealium/transcription-api/internal/vtt"
)

// TimedSegment is one transcribed span on the absolute job timeline.
type TimedSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the merged result persisted as final.json.
type Transcript struct {
	Segments []TimedSegment `json:"segments"`
	Text     string         `json:"text"`
}

// Normalize merges segments from all chunks into a single clean timeline.
// Empty or inverted segments are dropped, the rest are sorted by
// (start, end). When a segment starts inside its predecessor, the
// predecessor is trimmed to end at the newcomer's start, but only when the
// newcomer starts strictly after it; on equal starts the predecessor stays
// untouched. After the trim, a newcomer whose text equals the overlapped
// predecessor's text case-insensitively is dropped as a chunk-boundary
// duplicate. The result is deterministic for a given input set.
func Normalize(segments []TimedSegment) []TimedSegment {
	filtered := make([]TimedSegment, 0, len(segments))
	for _, s := range segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.End <= s.Start || s.Text == "" {
			continue
		}
		filtered = append(filtered, s)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Start != filtered[j].Start {
			return filtered[i].Start < filtered[j].Start
		}
		return filtered[i].End < filtered[j].End
	})

	var merged []TimedSegment
	for _, c := range filtered {
		if len(merged) > 0 {
			prev := &merged[len(merged)-1]
			if c.Start < prev.End {
				if c.Start > prev.Start {
					prev.End = c.Start
					if prev.End <= prev.Start {
						merged = merged[:len(merged)-1]
					}
				}
				// The duplicate check runs against the overlapped
				// predecessor even when the trim popped it.
				if strings.EqualFold(c.Text, prev.Text) {
					continue
				}
			}
		}
		merged = append(merged, c)
	}

	return merged
}

// JoinText flattens merged segments into the plain transcript: texts joined
// by single spaces.
func JoinText(segments []TimedSegment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

// Outputs selects which merged artifacts to write.
type Outputs struct {
	JSONPath string
	TXTPath  string
	VTTPath  string
}

// WriteOutputs persists the merged transcript. final.txt always carries a
// trailing newline; final.json is indented; final.vtt uses the shared VTT
// renderer. Empty paths skip that artifact. All writes are atomic.
func WriteOutputs(segments []TimedSegment, out Outputs) error {
	text := JoinText(segments)

	if out.TXTPath != "" {
		if err := fsutil.WriteFileAtomic(out.TXTPath, []byte(text+"\n"), 0o644); err != nil {
			return fmt.Errorf("write transcript text: %w", err)
		}
	}

	if out.JSONPath != "" {
		payload, err := json.MarshalIndent(Transcript{Segments: segments, Text: text}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal transcript: %w", err)
		}
		if err := fsutil.WriteFileAtomic(out.JSONPath, payload, 0o644); err != nil {
			return fmt.Errorf("write transcript json: %w", err)
		}
	}

	if out.VTTPath != "" {
		cues := make([]vtt.Cue, 0, len(segments))
		for _, s := range segments {
			cues = append(cues, vtt.Cue{Start: s.Start, End: s.End, Text: s.Text})
		}
		if err := fsutil.WriteFileAtomic(out.VTTPath, []byte(vtt.Render(cues)), 0o644); err != nil {
			return fmt.Errorf("write transcript vtt: %w", err)
		}
	}

	return nil
}
