// Package pipeline implements the four job stages: splitter, transcriber,
// merger and packager. Each stage is a queue handler that loads the job
// state, does its work idempotently (existing artifacts are trusted and
// skipped), and enqueues the next stage on success.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sealium/transcription-api/internal/asr"
	"github.com/sealium/transcription-api/internal/download"
	"github.com/sealium/transcription-api/internal/errorlog"
	"github.com/sealium/transcription-api/internal/jobs"
	"github.com/sealium/transcription-api/internal/metrics"
	"github.com/sealium/transcription-api/internal/pdf"
	"github.com/sealium/transcription-api/internal/queue"
	"github.com/sealium/transcription-api/internal/segment"
	"github.com/sealium/transcription-api/internal/storage"
)

// MediaTools is the slice of ffmpeg functionality the splitter needs.
type MediaTools interface {
	NormalizeWAV(ctx context.Context, inputPath, outputPath string) error
	ExportClip(ctx context.Context, inputWav, outputPath string, start, end float64) error
	ProbeDuration(ctx context.Context, mediaPath string) (float64, error)
	SilenceDetect(ctx context.Context, mediaPath, silenceDB string, minDuration float64) (string, error)
}

// SegmenterConfig carries the segmentation knobs from service configuration.
type SegmenterConfig struct {
	ChunkMode          string
	SilenceDB          string
	SilenceMinDuration float64
	MaxChunkSeconds    int
	MaxParallelChunks  int
	SponsorText        string
}

// Pipeline wires the stage handlers to their collaborators.
type Pipeline struct {
	store      *jobs.Store
	enqueuer   queue.Enqueuer
	tools      MediaTools
	vad        segment.VAD
	transcribe asr.ChunkTranscriber
	pdfWriter  pdf.Writer
	downloader download.Downloader
	uploader   storage.Uploader
	errorSink  errorlog.Sink
	metrics    *metrics.Metrics
	cfg        SegmenterConfig
	logger     *slog.Logger
}

// Deps lists the collaborators for New. Store, Enqueuer, Tools and
// Transcriber are required; the rest may be nil and degrade gracefully.
type Deps struct {
	Store       *jobs.Store
	Enqueuer    queue.Enqueuer
	Tools       MediaTools
	VAD         segment.VAD
	Transcriber asr.ChunkTranscriber
	PDFWriter   pdf.Writer
	Downloader  download.Downloader
	Uploader    storage.Uploader
	ErrorSink   errorlog.Sink
	Metrics     *metrics.Metrics
	Config      SegmenterConfig
	Logger      *slog.Logger
}

// New creates the pipeline.
func New(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.ErrorSink == nil {
		d.ErrorSink = errorlog.Discard{}
	}
	if d.Uploader == nil {
		d.Uploader = storage.NoUpload{}
	}
	return &Pipeline{
		store:      d.Store,
		enqueuer:   d.Enqueuer,
		tools:      d.Tools,
		vad:        d.VAD,
		transcribe: d.Transcriber,
		pdfWriter:  d.PDFWriter,
		downloader: d.Downloader,
		uploader:   d.Uploader,
		errorSink:  d.ErrorSink,
		metrics:    d.Metrics,
		cfg:        d.Config,
		logger:     d.Logger,
	}
}

// MarkFailed is the retry-exhaustion callback: the job moves to failed only
// after the queue gives up on the stage.
func (p *Pipeline) MarkFailed(ctx context.Context, jobID string) {
	if _, err := p.store.SetStatus(ctx, jobID, jobs.StatusFailed); err != nil {
		p.logger.Error("mark job failed", "job_id", jobID, "error", err)
	}
}

// begin loads the job and moves it into the stage's working status. It
// returns (nil, nil) when the stage should silently acknowledge the task:
// the job is unknown, already canceled, or otherwise terminal.
func (p *Pipeline) begin(ctx context.Context, jobID string, status jobs.Status, stage string) (*jobs.State, error) {
	state, err := p.store.Load(ctx, jobID)
	if err != nil {
		return nil, p.fail(ctx, jobID, stage, err)
	}
	if state == nil {
		p.logger.Warn("task for unknown job dropped", "job_id", jobID, "stage", stage)
		return nil, nil
	}
	if state.Status.IsTerminal() {
		p.logger.Info("task for finished job dropped", "job_id", jobID, "stage", stage, "status", state.Status)
		return nil, nil
	}

	state, err = p.store.SetStatus(ctx, jobID, status)
	if err != nil {
		return nil, p.fail(ctx, jobID, stage, err)
	}
	p.jobLog(jobID, "%s started", stage)
	return state, nil
}

// canceled re-reads the job between units of work so a cancel request takes
// effect at the next checkpoint.
func (p *Pipeline) canceled(ctx context.Context, jobID string) bool {
	state, err := p.store.Load(ctx, jobID)
	if err != nil || state == nil {
		return false
	}
	return state.Status == jobs.StatusCanceled
}

// fail records a stage error on the job and returns it so the queue can
// retry. The job only becomes failed when retries are exhausted.
func (p *Pipeline) fail(ctx context.Context, jobID, stage string, err error) error {
	p.logger.Error("stage failed", "job_id", jobID, "stage", stage, "error", err)
	p.jobLog(jobID, "%s failed: %v", stage, err)
	p.errorSink.Record(jobID, stage, 0, err)
	if _, addErr := p.store.AddError(ctx, jobID, fmt.Sprintf("%s: %v", stage, err)); addErr != nil && !errors.Is(addErr, jobs.ErrUnknownJob) {
		p.logger.Error("record job error", "job_id", jobID, "error", addErr)
	}
	return err
}

func (p *Pipeline) jobLog(jobID, format string, args ...any) {
	logger, err := jobs.NewLogger(p.store.Paths(jobID).JobLog())
	if err != nil {
		return
	}
	_ = logger.Writef(format, args...)
}

func (p *Pipeline) next(ctx context.Context, jobID, queueName, stage string) error {
	if err := p.enqueuer.Enqueue(ctx, queueName, jobID); err != nil {
		return p.fail(ctx, jobID, stage, fmt.Errorf("enqueue %s: %w", queueName, err))
	}
	return nil
}
