// Package segment computes the chunk plan for a normalized audio track:
// silence-based or VAD-based speech intervals, capped to a maximum chunk
// length, indexed, and persisted as chunks.json.
package segment

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sealium/transcription-api/internal/fsutil"
)

// Segment is one planned chunk: a [Start, End) interval in seconds with a
// 1-based index.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Interval is a raw [Start, End) span before indexing.
type Interval struct {
	Start float64
	End   float64
}

// FromSilences builds speech intervals from silence intervals over a track
// of the given duration. The walk keeps a cursor at the end of the last
// emitted speech span: each silence opens a speech interval before it, and
// the tail after the final silence becomes the last interval. A track with
// no detected silences (or only full-cover silence) yields a single span
// over the whole duration, so audible input always produces at least one
// chunk. Empty intervals are dropped.
func FromSilences(silences []Interval, duration float64) []Interval {
	var speech []Interval
	cur := 0.0

	for _, s := range silences {
		if s.Start > cur {
			speech = append(speech, Interval{Start: cur, End: s.Start})
		}
		if s.End > cur {
			cur = s.End
		}
	}
	if duration > cur {
		speech = append(speech, Interval{Start: cur, End: duration})
	}

	if len(speech) == 0 && duration > 0 {
		speech = []Interval{{Start: 0, End: duration}}
	}

	out := speech[:0]
	for _, iv := range speech {
		if iv.End > iv.Start {
			out = append(out, iv)
		}
	}
	return out
}

// SplitLong caps every interval at maxSeconds by cutting consecutive
// windows from the left edge; only the final window of an interval may be
// shorter than the cap. maxSeconds <= 0 disables capping.
func SplitLong(intervals []Interval, maxSeconds int) []Interval {
	if maxSeconds <= 0 {
		return intervals
	}
	cap := float64(maxSeconds)

	var out []Interval
	for _, iv := range intervals {
		cur := iv.Start
		for cur < iv.End {
			next := cur + cap
			if next > iv.End {
				next = iv.End
			}
			out = append(out, Interval{Start: cur, End: next})
			cur = next
		}
	}
	return out
}

// Index assigns 1-based indices in order, producing the final plan.
func Index(intervals []Interval) []Segment {
	segments := make([]Segment, 0, len(intervals))
	for i, iv := range intervals {
		segments = append(segments, Segment{Index: i + 1, Start: iv.Start, End: iv.End})
	}
	return segments
}

// WritePlan persists the plan as chunks.json atomically.
func WritePlan(path string, plan []Segment) error {
	payload, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chunk plan: %w", err)
	}
	return fsutil.WriteFileAtomic(path, payload, 0o644)
}

// ReadPlan loads chunks.json and returns the plan sorted by index.
func ReadPlan(path string) ([]Segment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunk plan: %w", err)
	}

	var plan []Segment
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("parse chunk plan: %w", err)
	}

	sort.Slice(plan, func(i, j int) bool { return plan[i].Index < plan[j].Index })
	return plan, nil
}
