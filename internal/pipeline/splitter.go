package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/sealium/transcription-api/internal/download"
	"github.com/sealium/transcription-api/internal/fsutil"
	"github.com/sealium/transcription-api/internal/jobs"
	"github.com/sealium/transcription-api/internal/queue"
	"github.com/sealium/transcription-api/internal/segment"
)

const stageSplitter = "splitter"

// Split is the first stage: it materializes the source media, normalizes it
// to the canonical WAV, computes the chunk plan and exports the chunk clips.
// Every step skips work that a previous attempt already finished, so a retry
// resumes instead of redoing.
func (p *Pipeline) Split(ctx context.Context, jobID string) error {
	state, err := p.begin(ctx, jobID, jobs.StatusSplitting, stageSplitter)
	if err != nil || state == nil {
		return err
	}
	defer func() { p.metrics.ObserveStage(stageSplitter, err) }()

	paths := p.store.Paths(jobID)
	for _, dir := range []string{paths.InputDir(), paths.ChunksDir(), paths.PartialsDir(), paths.MergedDir(), paths.OutputDir(), paths.LogsDir()} {
		if err = fsutil.EnsureDir(dir); err != nil {
			return p.fail(ctx, jobID, stageSplitter, err)
		}
	}

	if err = p.materializeOriginal(ctx, state, paths); err != nil {
		return p.fail(ctx, jobID, stageSplitter, err)
	}

	if !fsutil.FileExists(paths.AudioWAV()) {
		if err = p.tools.NormalizeWAV(ctx, paths.OriginalMP4(), paths.AudioWAV()); err != nil {
			err = fmt.Errorf("%w: %v", jobs.ErrMediaToolFailed, err)
			return p.fail(ctx, jobID, stageSplitter, err)
		}
		p.jobLog(jobID, "normalized audio to %s", paths.AudioWAV())
	}

	plan, err := p.chunkPlan(ctx, state, paths)
	if err != nil {
		return p.fail(ctx, jobID, stageSplitter, err)
	}

	if _, err = p.store.SetProgress(ctx, jobID, jobs.IntPtr(len(plan)), nil); err != nil {
		return p.fail(ctx, jobID, stageSplitter, err)
	}

	for _, chunk := range plan {
		if p.canceled(ctx, jobID) {
			p.jobLog(jobID, "splitter stopped: job canceled")
			return nil
		}
		chunkPath := paths.ChunkPath(chunk.Index)
		if fsutil.FileExists(chunkPath) {
			continue
		}
		if err = p.tools.ExportClip(ctx, paths.AudioWAV(), chunkPath, chunk.Start, chunk.End); err != nil {
			err = fmt.Errorf("%w: chunk %d: %v", jobs.ErrMediaToolFailed, chunk.Index, err)
			return p.fail(ctx, jobID, stageSplitter, err)
		}
	}

	p.jobLog(jobID, "splitter finished: %d chunks", len(plan))
	return p.next(ctx, jobID, queue.QueueTranscriber, stageSplitter)
}

// materializeOriginal puts the source media at input/original.mp4 according
// to the input type. An already-present original is trusted as-is.
func (p *Pipeline) materializeOriginal(ctx context.Context, state *jobs.State, paths jobs.Paths) error {
	if fsutil.FileExists(paths.OriginalMP4()) {
		return nil
	}

	switch state.Input.Type {
	case jobs.InputUpload:
		// The intake layer writes the upload before enqueueing; a missing
		// file here means the handoff broke.
		return fmt.Errorf("%w: %s", jobs.ErrMissingUpload, paths.OriginalMP4())

	case jobs.InputPath:
		if _, err := os.Stat(state.Input.Value); err != nil {
			return fmt.Errorf("%w: %s", jobs.ErrInputNotFound, state.Input.Value)
		}
		if err := fsutil.CopyFile(state.Input.Value, paths.OriginalMP4()); err != nil {
			return fmt.Errorf("copy source media: %w", err)
		}
		return nil

	case jobs.InputURL:
		if p.downloader == nil {
			return fmt.Errorf("%w: no downloader configured", jobs.ErrDownloaderFailed)
		}
		title, err := p.downloader.Download(ctx, state.Input.Value, paths.OriginalMP4(), download.Options{
			CookiesFromBrowser: state.Options.CookiesFromBrowser,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", jobs.ErrDownloaderFailed, err)
		}
		if title != "" {
			p.jobLog(state.JobID, "downloaded %q", title)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown input type %q", jobs.ErrInputNotFound, state.Input.Type)
	}
}

// chunkPlan loads an existing chunks.json or computes and persists a fresh
// plan from the normalized audio.
func (p *Pipeline) chunkPlan(ctx context.Context, state *jobs.State, paths jobs.Paths) ([]segment.Segment, error) {
	if fsutil.FileExists(paths.ChunksMetaPath()) {
		return segment.ReadPlan(paths.ChunksMetaPath())
	}

	duration, err := p.tools.ProbeDuration(ctx, paths.AudioWAV())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", jobs.ErrMediaToolFailed, err)
	}

	mode := state.Options.ChunkMode
	if mode == "" {
		mode = p.cfg.ChunkMode
	}

	var intervals []segment.Interval
	switch mode {
	case "vad":
		if p.vad == nil {
			return nil, fmt.Errorf("%w: vad requested but not configured", jobs.ErrSegmentationFailed)
		}
		spans, err := p.vad.DetectSpeech(ctx, paths.AudioWAV())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", jobs.ErrSegmentationFailed, err)
		}
		intervals = segment.SpansToIntervals(spans, duration)

	default:
		output, err := p.tools.SilenceDetect(ctx, paths.AudioWAV(), p.cfg.SilenceDB, p.cfg.SilenceMinDuration)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", jobs.ErrSegmentationFailed, err)
		}
		intervals = segment.FromSilences(segment.ParseSilences(output), duration)
	}

	plan := segment.Index(segment.SplitLong(intervals, p.cfg.MaxChunkSeconds))
	if err := segment.WritePlan(paths.ChunksMetaPath(), plan); err != nil {
		return nil, fmt.Errorf("%w: %v", jobs.ErrSegmentationFailed, err)
	}
	return plan, nil
}
