package segment

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSilences(t *testing.T) {
	output := `
[silencedetect @ 0x55] silence_start: 1.0
[silencedetect @ 0x55] silence_end: 2.0 | silence_duration: 1.0
[silencedetect @ 0x55] silence_start: 4.0
[silencedetect @ 0x55] silence_end: 4.5 | silence_duration: 0.5
`
	silences := ParseSilences(output)
	require.Len(t, silences, 2)
	assert.Equal(t, Interval{Start: 1.0, End: 2.0}, silences[0])
	assert.Equal(t, Interval{Start: 4.0, End: 4.5}, silences[1])
}

func TestParseSilences_Edge(t *testing.T) {
	t.Run("empty output", func(t *testing.T) {
		assert.Empty(t, ParseSilences(""))
	})

	t.Run("start without end dropped", func(t *testing.T) {
		assert.Empty(t, ParseSilences("silence_start: 3.0\n"))
	})

	t.Run("end without start dropped", func(t *testing.T) {
		assert.Empty(t, ParseSilences("silence_end: 3.0\n"))
	})

	t.Run("inverted pair dropped", func(t *testing.T) {
		out := "silence_start: 5.0\nsilence_end: 4.0\n"
		assert.Empty(t, ParseSilences(out))
	})
}

func TestFromSilences(t *testing.T) {
	t.Run("silences carve speech spans", func(t *testing.T) {
		silences := []Interval{{Start: 1.0, End: 2.0}, {Start: 4.0, End: 4.5}}
		speech := FromSilences(silences, 6.0)
		assert.Equal(t, []Interval{
			{Start: 0.0, End: 1.0},
			{Start: 2.0, End: 4.0},
			{Start: 4.5, End: 6.0},
		}, speech)
	})

	t.Run("no silences yields whole track", func(t *testing.T) {
		speech := FromSilences(nil, 5.0)
		assert.Equal(t, []Interval{{Start: 0, End: 5.0}}, speech)
	})

	t.Run("leading silence skipped", func(t *testing.T) {
		speech := FromSilences([]Interval{{Start: 0, End: 1.5}}, 4.0)
		assert.Equal(t, []Interval{{Start: 1.5, End: 4.0}}, speech)
	})

	t.Run("trailing silence skipped", func(t *testing.T) {
		speech := FromSilences([]Interval{{Start: 3.0, End: 4.0}}, 4.0)
		assert.Equal(t, []Interval{{Start: 0, End: 3.0}}, speech)
	})

	t.Run("full-cover silence yields whole track", func(t *testing.T) {
		speech := FromSilences([]Interval{{Start: 0, End: 4.0}}, 4.0)
		assert.Equal(t, []Interval{{Start: 0, End: 4.0}}, speech)
	})

	t.Run("zero duration yields nothing", func(t *testing.T) {
		assert.Empty(t, FromSilences(nil, 0))
	})

	t.Run("overlapping silences advance cursor monotonically", func(t *testing.T) {
		silences := []Interval{{Start: 1.0, End: 3.0}, {Start: 2.0, End: 2.5}}
		speech := FromSilences(silences, 5.0)
		assert.Equal(t, []Interval{
			{Start: 0.0, End: 1.0},
			{Start: 3.0, End: 5.0},
		}, speech)
	})
}

func TestSplitLong(t *testing.T) {
	t.Run("short intervals untouched", func(t *testing.T) {
		in := []Interval{{Start: 0, End: 1.5}}
		assert.Equal(t, in, SplitLong(in, 2))
	})

	t.Run("long interval cut from the left edge", func(t *testing.T) {
		out := SplitLong([]Interval{{Start: 0, End: 5.0}}, 2)
		assert.Equal(t, []Interval{
			{Start: 0, End: 2.0},
			{Start: 2.0, End: 4.0},
			{Start: 4.0, End: 5.0},
		}, out)
	})

	t.Run("cap disabled", func(t *testing.T) {
		in := []Interval{{Start: 0, End: 500}}
		assert.Equal(t, in, SplitLong(in, 0))
	})

	t.Run("exact multiple has no empty tail", func(t *testing.T) {
		out := SplitLong([]Interval{{Start: 0, End: 4.0}}, 2)
		assert.Equal(t, []Interval{
			{Start: 0, End: 2.0},
			{Start: 2.0, End: 4.0},
		}, out)
	})
}

// Silence segmenter end-to-end: two silences on a 6 s track with a 2 s cap.
func TestPlanFromSilenceOutput(t *testing.T) {
	output := `silence_start: 1.0
silence_end: 2.0 | silence_duration: 1.0
silence_start: 4.0
silence_end: 4.5 | silence_duration: 0.5
`
	speech := FromSilences(ParseSilences(output), 6.0)
	plan := Index(SplitLong(speech, 2))

	assert.Equal(t, []Segment{
		{Index: 1, Start: 0.0, End: 1.0},
		{Index: 2, Start: 2.0, End: 4.0},
		{Index: 3, Start: 4.5, End: 6.0},
	}, plan)
}

// No silences on a 5 s track with a 2 s cap: fixed windows from zero.
func TestPlanNoSilences(t *testing.T) {
	plan := Index(SplitLong(FromSilences(nil, 5.0), 2))
	assert.Equal(t, []Segment{
		{Index: 1, Start: 0.0, End: 2.0},
		{Index: 2, Start: 2.0, End: 4.0},
		{Index: 3, Start: 4.0, End: 5.0},
	}, plan)
}

func TestPlanRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.json")

	plan := []Segment{
		{Index: 1, Start: 0.0, End: 1.0},
		{Index: 2, Start: 2.0, End: 4.0},
		{Index: 3, Start: 4.5, End: 6.0},
	}
	require.NoError(t, WritePlan(path, plan))

	loaded, err := ReadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, plan, loaded)
}

func TestReadPlan_SortsByIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.json")

	require.NoError(t, WritePlan(path, []Segment{
		{Index: 3, Start: 4.5, End: 6.0},
		{Index: 1, Start: 0.0, End: 1.0},
		{Index: 2, Start: 2.0, End: 4.0},
	}))

	loaded, err := ReadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded[0].Index)
	assert.Equal(t, 2, loaded[1].Index)
	assert.Equal(t, 3, loaded[2].Index)
}

func TestSpansToIntervals(t *testing.T) {
	t.Run("frames convert to seconds", func(t *testing.T) {
		spans := []SpeechSpan{
			{StartFrame: 0, EndFrame: 16000},
			{StartFrame: 32000, EndFrame: 40000},
		}
		assert.Equal(t, []Interval{
			{Start: 0, End: 1.0},
			{Start: 2.0, End: 2.5},
		}, SpansToIntervals(spans, 10.0))
	})

	t.Run("empty span dropped", func(t *testing.T) {
		spans := []SpeechSpan{{StartFrame: 1600, EndFrame: 1600}}
		assert.Equal(t, []Interval{{Start: 0, End: 3.0}}, SpansToIntervals(spans, 3.0))
	})

	t.Run("no speech falls back to whole track", func(t *testing.T) {
		assert.Equal(t, []Interval{{Start: 0, End: 7.5}}, SpansToIntervals(nil, 7.5))
	})
}
