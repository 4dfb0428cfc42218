// Package vtt renders WebVTT subtitle documents from timed text segments.
package vtt

import (
	"fmt"
	"math"
	"strings"
)

// Cue is one timed text span in seconds.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// FormatTimestamp renders seconds as HH:MM:SS.mmm. The value is rounded to
// the nearest millisecond; negative inputs clamp to zero.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	totalMs := int64(math.Round(seconds * 1000))
	ms := totalMs % 1000
	totalSec := totalMs / 1000
	s := totalSec % 60
	m := (totalSec / 60) % 60
	h := totalSec / 3600

	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// Render produces a complete WebVTT document: the WEBVTT header, then one
// numbered cue per segment. Segments with blank text are skipped and do not
// consume a cue number. The document always ends with a newline.
func Render(cues []Cue) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")

	n := 0
	for _, c := range cues {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d\n", n)
		fmt.Fprintf(&b, "%s --> %s\n", FormatTimestamp(c.Start), FormatTimestamp(c.End))
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	out := b.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}
