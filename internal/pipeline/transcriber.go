package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sealium/transcription-api/internal/asr"
	"github.com/sealium/transcription-api/internal/fsutil"
	"github.com/sealium/transcription-api/internal/jobs"
	"github.com/sealium/transcription-api/internal/queue"
	"github.com/sealium/transcription-api/internal/segment"
)

const stageTranscriber = "transcriber"

// Transcribe is the second stage: it runs ASR over every chunk that has no
// partial result yet, bounded by the job's parallelism setting. Progress is
// updated as each chunk completes; existing partials from earlier attempts
// count as done without being redone.
func (p *Pipeline) Transcribe(ctx context.Context, jobID string) error {
	state, err := p.begin(ctx, jobID, jobs.StatusTranscribing, stageTranscriber)
	if err != nil || state == nil {
		return err
	}
	defer func() { p.metrics.ObserveStage(stageTranscriber, err) }()

	paths := p.store.Paths(jobID)
	plan, err := segment.ReadPlan(paths.ChunksMetaPath())
	if err != nil {
		return p.fail(ctx, jobID, stageTranscriber, fmt.Errorf("%w: %v", jobs.ErrASRFailed, err))
	}

	var missing []segment.Segment
	for _, chunk := range plan {
		if !fsutil.FileExists(paths.PartialPath(chunk.Index)) {
			missing = append(missing, chunk)
		}
	}

	done := int64(len(plan) - len(missing))
	if _, err = p.store.SetProgress(ctx, jobID, jobs.IntPtr(len(plan)), jobs.IntPtr(int(done))); err != nil {
		return p.fail(ctx, jobID, stageTranscriber, err)
	}

	if len(missing) == 0 {
		p.jobLog(jobID, "transcriber finished: all %d chunks already done", len(plan))
		return p.next(ctx, jobID, queue.QueueMerger, stageTranscriber)
	}

	language := state.Options.Language
	parallel := state.Options.MaxParallelChunks
	if parallel < 1 {
		parallel = p.cfg.MaxParallelChunks
	}
	if parallel > len(missing) {
		parallel = len(missing)
	}

	var stopped atomic.Bool
	var progressMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, parallel)

	for _, chunk := range missing {
		chunk := chunk
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			if stopped.Load() {
				return nil
			}
			if p.canceled(gctx, jobID) {
				stopped.Store(true)
				return nil
			}

			started := time.Now()
			raw, err := p.transcribe.TranscribeChunk(gctx, paths.ChunkPath(chunk.Index), language)
			if err != nil {
				return fmt.Errorf("%w: chunk %d: %v", jobs.ErrASRFailed, chunk.Index, err)
			}
			p.metrics.ObserveChunk(time.Since(started).Seconds())

			partial := asr.BuildPartial(chunk.Index, chunk.Start, chunk.End, raw)
			if err := asr.WritePartial(paths.PartialPath(chunk.Index), partial); err != nil {
				return fmt.Errorf("%w: chunk %d: %v", jobs.ErrPartialWriteFailed, chunk.Index, err)
			}

			n := atomic.AddInt64(&done, 1)
			progressMu.Lock()
			_, perr := p.store.SetProgress(gctx, jobID, nil, jobs.IntPtr(int(n)))
			progressMu.Unlock()
			if perr != nil {
				return perr
			}
			return nil
		})
	}

	if err = g.Wait(); err != nil {
		return p.fail(ctx, jobID, stageTranscriber, err)
	}
	if stopped.Load() {
		p.jobLog(jobID, "transcriber stopped: job canceled")
		return nil
	}

	p.jobLog(jobID, "transcriber finished: %d chunks", len(plan))
	return p.next(ctx, jobID, queue.QueueMerger, stageTranscriber)
}
