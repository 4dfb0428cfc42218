package asr

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealium/transcription-api/internal/merge"
)

func TestBuildPartial(t *testing.T) {
	raw := []RawSegment{
		{Start: 0, End: 1.5, Text: " Hola, ¿qué tal? "},
		{Start: 1.5, End: 3, Text: "todo bien"},
	}

	p := BuildPartial(2, 10.0, 13.0, raw)

	assert.Equal(t, 2, p.ChunkIndex)
	assert.Equal(t, 10.0, p.ChunkStart)
	assert.Equal(t, 13.0, p.ChunkEnd)
	require.Len(t, p.Segments, 2)
	assert.Equal(t, merge.TimedSegment{Start: 10.0, End: 11.5, Text: "Hola, que tal?"}, p.Segments[0])
	assert.Equal(t, merge.TimedSegment{Start: 11.5, End: 13.0, Text: "todo bien"}, p.Segments[1])
	assert.Equal(t, "Hola, que tal? todo bien", p.Text)
}

func TestBuildPartial_DropsInvalidSegments(t *testing.T) {
	raw := []RawSegment{
		{Start: 1, End: 1, Text: "zero width"},
		{Start: 2, End: 1, Text: "inverted"},
		{Start: 0, End: 1, Text: "   "},
		{Start: 3, End: 4, Text: "kept"},
	}

	p := BuildPartial(1, 0, 4, raw)
	require.Len(t, p.Segments, 1)
	assert.Equal(t, "kept", p.Segments[0].Text)
	assert.Equal(t, "kept", p.Text)
}

func TestBuildPartial_Empty(t *testing.T) {
	p := BuildPartial(1, 0, 2, nil)
	assert.Empty(t, p.Segments)
	assert.Equal(t, "", p.Text)
}

func TestPartialRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0001.json")

	p := BuildPartial(1, 0, 2, []RawSegment{{Start: 0, End: 2, Text: "hello"}})
	require.NoError(t, WritePartial(path, p))

	loaded, err := ReadPartial(path)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)
}

func TestReadPartial_Missing(t *testing.T) {
	_, err := ReadPartial(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI("", "")
	assert.ErrorIs(t, err, ErrOpenAIKeyMissing)
}
