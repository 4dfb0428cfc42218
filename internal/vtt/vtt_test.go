package vtt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{name: "zero", seconds: 0, want: "00:00:00.000"},
		{name: "sub-second", seconds: 0.5, want: "00:00:00.500"},
		{name: "minute boundary with millis", seconds: 61.005, want: "00:01:01.005"},
		{name: "hour rollover", seconds: 3661.25, want: "01:01:01.250"},
		{name: "rounds to nearest millisecond", seconds: 1.0005, want: "00:00:01.001"},
		{name: "negative clamps to zero", seconds: -3.2, want: "00:00:00.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimestamp(tt.seconds))
		})
	}
}

func TestRender(t *testing.T) {
	doc := Render([]Cue{
		{Start: 0, End: 2, Text: "hello"},
		{Start: 2, End: 3.5, Text: "world"},
	})

	assert.True(t, strings.HasPrefix(doc, "WEBVTT\n\n"))
	assert.Contains(t, doc, "1\n00:00:00.000 --> 00:00:02.000\nhello\n")
	assert.Contains(t, doc, "2\n00:00:02.000 --> 00:00:03.500\nworld\n")
	assert.True(t, strings.HasSuffix(doc, "\n"))
}

func TestRender_SkipsBlankText(t *testing.T) {
	doc := Render([]Cue{
		{Start: 0, End: 1, Text: "   "},
		{Start: 1, End: 2, Text: "kept"},
	})

	// Blank cues are dropped and numbering stays contiguous.
	assert.NotContains(t, doc, "00:00:00.000 -->")
	assert.Contains(t, doc, "1\n00:00:01.000 --> 00:00:02.000\nkept\n")
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "WEBVTT\n\n", Render(nil))
}
