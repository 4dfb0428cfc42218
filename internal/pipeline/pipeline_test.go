package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealium/transcription-api/internal/asr"
	"github.com/sealium/transcription-api/internal/jobs"
	"github.com/sealium/transcription-api/internal/queue"
)

// fakeTools simulates ffmpeg: normalization and clip export just write
// placeholder files, silence detection returns a canned transcript of the
// filter output.
type fakeTools struct {
	duration      float64
	silenceOutput string
	exported      []int
}

func (f *fakeTools) NormalizeWAV(_ context.Context, _, outputPath string) error {
	return os.WriteFile(outputPath, []byte("wav"), 0o644)
}

func (f *fakeTools) ExportClip(_ context.Context, _, outputPath string, _, _ float64) error {
	idx, _ := strconv.Atoi(strings.TrimSuffix(filepath.Base(outputPath), ".wav"))
	f.exported = append(f.exported, idx)
	return os.WriteFile(outputPath, []byte("clip"), 0o644)
}

func (f *fakeTools) ProbeDuration(context.Context, string) (float64, error) {
	return f.duration, nil
}

func (f *fakeTools) SilenceDetect(context.Context, string, string, float64) (string, error) {
	return f.silenceOutput, nil
}

// fakeASR emits one segment per chunk whose text encodes the chunk file.
type fakeASR struct {
	calls int
	fail  bool
}

func (f *fakeASR) TranscribeChunk(_ context.Context, wavPath, _ string) ([]asr.RawSegment, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("engine exploded")
	}
	name := filepath.Base(wavPath)
	return []asr.RawSegment{{Start: 0, End: 1, Text: "segment " + name}}, nil
}

func newTestPipeline(t *testing.T, tools *fakeTools, engine *fakeASR) (*Pipeline, *jobs.Store, *queue.Memory) {
	t.Helper()
	store := jobs.NewStore(t.TempDir())
	mem := queue.NewMemory()
	p := New(Deps{
		Store:       store,
		Enqueuer:    mem,
		Tools:       tools,
		Transcriber: engine,
		Config: SegmenterConfig{
			ChunkMode:          "silence",
			SilenceDB:          "-35dB",
			SilenceMinDuration: 0.6,
			MaxChunkSeconds:    2,
			MaxParallelChunks:  2,
		},
	})
	return p, store, mem
}

func createJob(t *testing.T, store *jobs.Store, opts jobs.Options) *jobs.State {
	t.Helper()
	state := jobs.NewState(jobs.Input{Type: jobs.InputUpload, Value: "original.mp4"}, opts)
	require.NoError(t, store.Create(context.Background(), state))

	paths := store.Paths(state.JobID)
	require.NoError(t, os.MkdirAll(paths.InputDir(), 0o750))
	require.NoError(t, os.WriteFile(paths.OriginalMP4(), []byte("mp4"), 0o644))
	return state
}

func defaultOpts() jobs.Options {
	opts := jobs.DefaultOptions("es")
	opts.ProducePDF = false
	return opts
}

func TestSplit(t *testing.T) {
	tools := &fakeTools{
		duration: 6.0,
		silenceOutput: "silence_start: 1.0\nsilence_end: 2.0\n" +
			"silence_start: 4.0\nsilence_end: 4.5\n",
	}
	p, store, mem := newTestPipeline(t, tools, &fakeASR{})
	state := createJob(t, store, defaultOpts())
	ctx := context.Background()

	require.NoError(t, p.Split(ctx, state.JobID))

	after, err := store.Load(ctx, state.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusSplitting, after.Status)
	assert.Equal(t, 3, after.Progress.ChunksTotal)
	assert.Equal(t, []int{1, 2, 3}, tools.exported)

	next, ok := mem.Pop(queue.QueueTranscriber)
	require.True(t, ok)
	assert.Equal(t, state.JobID, next)
}

func TestSplit_ResumesExistingChunks(t *testing.T) {
	tools := &fakeTools{duration: 5.0}
	p, store, _ := newTestPipeline(t, tools, &fakeASR{})
	state := createJob(t, store, defaultOpts())
	ctx := context.Background()

	paths := store.Paths(state.JobID)
	require.NoError(t, os.MkdirAll(paths.ChunksDir(), 0o750))
	require.NoError(t, os.WriteFile(paths.ChunkPath(1), []byte("old clip"), 0o644))

	require.NoError(t, p.Split(ctx, state.JobID))

	// Chunk 1 existed already and was not re-exported.
	assert.NotContains(t, tools.exported, 1)
	assert.Contains(t, tools.exported, 2)
}

func TestSplit_MissingUpload(t *testing.T) {
	p, store, mem := newTestPipeline(t, &fakeTools{duration: 5}, &fakeASR{})
	state := jobs.NewState(jobs.Input{Type: jobs.InputUpload}, defaultOpts())
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, state))

	err := p.Split(ctx, state.JobID)
	require.ErrorIs(t, err, jobs.ErrMissingUpload)

	after, loadErr := store.Load(ctx, state.JobID)
	require.NoError(t, loadErr)
	// The stage records the error but does not mark the job failed; the
	// queue does that when retries run out.
	assert.NotEqual(t, jobs.StatusFailed, after.Status)
	require.NotEmpty(t, after.Errors)
	assert.Contains(t, after.Errors[0], "splitter")

	_, ok := mem.Pop(queue.QueueTranscriber)
	assert.False(t, ok)
}

func TestSplit_PathInputNotFound(t *testing.T) {
	p, store, _ := newTestPipeline(t, &fakeTools{duration: 5}, &fakeASR{})
	state := jobs.NewState(jobs.Input{Type: jobs.InputPath, Value: "/nonexistent/talk.mp4"}, defaultOpts())
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, state))

	err := p.Split(ctx, state.JobID)
	assert.ErrorIs(t, err, jobs.ErrInputNotFound)
}

func runThroughSplit(t *testing.T, p *Pipeline, store *jobs.Store, mem *queue.Memory, opts jobs.Options) *jobs.State {
	t.Helper()
	state := createJob(t, store, opts)
	require.NoError(t, p.Split(context.Background(), state.JobID))
	jobID, ok := mem.Pop(queue.QueueTranscriber)
	require.True(t, ok)
	require.Equal(t, state.JobID, jobID)
	return state
}

func TestTranscribe(t *testing.T) {
	tools := &fakeTools{duration: 5.0}
	engine := &fakeASR{}
	p, store, mem := newTestPipeline(t, tools, engine)
	state := runThroughSplit(t, p, store, mem, defaultOpts())
	ctx := context.Background()

	require.NoError(t, p.Transcribe(ctx, state.JobID))

	after, err := store.Load(ctx, state.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusTranscribing, after.Status)
	assert.Equal(t, after.Progress.ChunksTotal, after.Progress.ChunksDone)
	assert.Equal(t, 100, after.Progress.Percent)

	paths := store.Paths(state.JobID)
	for i := 1; i <= after.Progress.ChunksTotal; i++ {
		assert.FileExists(t, paths.PartialPath(i))
	}

	next, ok := mem.Pop(queue.QueueMerger)
	require.True(t, ok)
	assert.Equal(t, state.JobID, next)
}

func TestTranscribe_SkipsExistingPartials(t *testing.T) {
	tools := &fakeTools{duration: 5.0}
	engine := &fakeASR{}
	p, store, mem := newTestPipeline(t, tools, engine)
	state := runThroughSplit(t, p, store, mem, defaultOpts())
	ctx := context.Background()

	// First attempt transcribed chunk 1 before crashing.
	paths := store.Paths(state.JobID)
	partial := asr.BuildPartial(1, 0, 2, []asr.RawSegment{{Start: 0, End: 1, Text: "done before"}})
	require.NoError(t, asr.WritePartial(paths.PartialPath(1), partial))

	require.NoError(t, p.Transcribe(ctx, state.JobID))

	after, err := store.Load(ctx, state.JobID)
	require.NoError(t, err)
	// Total chunks minus the pre-existing partial.
	assert.Equal(t, after.Progress.ChunksTotal-1, engine.calls)
}

func TestTranscribe_EngineFailure(t *testing.T) {
	tools := &fakeTools{duration: 3.0}
	p, store, mem := newTestPipeline(t, tools, &fakeASR{fail: true})
	state := runThroughSplit(t, p, store, mem, defaultOpts())
	ctx := context.Background()

	err := p.Transcribe(ctx, state.JobID)
	require.ErrorIs(t, err, jobs.ErrASRFailed)

	_, ok := mem.Pop(queue.QueueMerger)
	assert.False(t, ok)
}

func TestMergeAndPackage(t *testing.T) {
	tools := &fakeTools{
		duration: 6.0,
		silenceOutput: "silence_start: 1.0\nsilence_end: 2.0\n" +
			"silence_start: 4.0\nsilence_end: 4.5\n",
	}
	p, store, mem := newTestPipeline(t, tools, &fakeASR{})
	state := runThroughSplit(t, p, store, mem, defaultOpts())
	ctx := context.Background()

	require.NoError(t, p.Transcribe(ctx, state.JobID))
	jobID, ok := mem.Pop(queue.QueueMerger)
	require.True(t, ok)

	require.NoError(t, p.Merge(ctx, jobID))
	jobID, ok = mem.Pop(queue.QueuePackager)
	require.True(t, ok)

	require.NoError(t, p.Package(ctx, jobID))

	after, err := store.Load(ctx, state.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusDone, after.Status)
	require.NotNil(t, after.Result)
	assert.Equal(t, "sealium_transcription_"+state.JobID+".zip", after.Result.DownloadName)
	assert.NotEmpty(t, after.Timestamps.FinishedAt)

	paths := store.Paths(state.JobID)
	assert.FileExists(t, paths.FinalTXT())
	assert.FileExists(t, paths.FinalJSON())
	assert.FileExists(t, paths.FinalVTT())
	assert.FileExists(t, paths.ManifestPath())
	assert.FileExists(t, paths.OutputZip())

	txt, err := os.ReadFile(paths.FinalTXT())
	require.NoError(t, err)
	assert.Contains(t, string(txt), "segment 0001.wav")
}

func TestCancelStopsPipeline(t *testing.T) {
	tools := &fakeTools{duration: 5.0}
	engine := &fakeASR{}
	p, store, mem := newTestPipeline(t, tools, engine)
	state := runThroughSplit(t, p, store, mem, defaultOpts())
	ctx := context.Background()

	_, err := store.SetStatus(ctx, state.JobID, jobs.StatusCanceled)
	require.NoError(t, err)

	// The pending transcriber task is acknowledged without work.
	require.NoError(t, p.Transcribe(ctx, state.JobID))
	assert.Zero(t, engine.calls)

	_, ok := mem.Pop(queue.QueueMerger)
	assert.False(t, ok)

	after, loadErr := store.Load(ctx, state.JobID)
	require.NoError(t, loadErr)
	assert.Equal(t, jobs.StatusCanceled, after.Status)
}

func TestStageSkipsUnknownJob(t *testing.T) {
	p, _, mem := newTestPipeline(t, &fakeTools{duration: 5}, &fakeASR{})

	// An unknown job acknowledges silently rather than retrying forever.
	require.NoError(t, p.Split(context.Background(), "no-such-job"))
	_, ok := mem.Pop(queue.QueueTranscriber)
	assert.False(t, ok)
}

func TestMarkFailed(t *testing.T) {
	p, store, _ := newTestPipeline(t, &fakeTools{duration: 5}, &fakeASR{})
	state := createJob(t, store, defaultOpts())
	ctx := context.Background()

	p.MarkFailed(ctx, state.JobID)

	after, err := store.Load(ctx, state.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, after.Status)
	assert.NotEmpty(t, after.Timestamps.FinishedAt)
}
