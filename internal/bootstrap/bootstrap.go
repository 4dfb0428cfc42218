// Package bootstrap provides dependency initialization for the
// transcription service: it turns configuration into a wired store, queue,
// pipeline, worker, and HTTP handler set.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sealium/transcription-api/internal/asr"
	"github.com/sealium/transcription-api/internal/config"
	"github.com/sealium/transcription-api/internal/download"
	"github.com/sealium/transcription-api/internal/errorlog"
	"github.com/sealium/transcription-api/internal/fsutil"
	"github.com/sealium/transcription-api/internal/jobs"
	"github.com/sealium/transcription-api/internal/media"
	"github.com/sealium/transcription-api/internal/metrics"
	"github.com/sealium/transcription-api/internal/pdf"
	"github.com/sealium/transcription-api/internal/pipeline"
	"github.com/sealium/transcription-api/internal/queue"
	"github.com/sealium/transcription-api/internal/segment"
	"github.com/sealium/transcription-api/internal/server"
	"github.com/sealium/transcription-api/internal/storage"
)

// Dependencies holds everything the serve and worker commands need.
type Dependencies struct {
	Store    *jobs.Store
	Queue    *queue.Redis
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Metrics
	Handler  http.Handler

	redisClient *redis.Client
}

// NewDependencies creates and initializes all dependencies for the
// application. Redis is required: it carries both the work queue and the
// state cache mirror.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	if err := fsutil.EnsureDir(cfg.StorageRoot); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	rdb, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	store := jobs.NewStore(cfg.StorageRoot, jobs.WithCache(rdb))
	broker := queue.NewRedis(rdb)
	m := metrics.New(prometheus.DefaultRegisterer)

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	uploader, err := newUploader(cfg, logger)
	if err != nil {
		return nil, err
	}

	var vad segment.VAD
	if cfg.ChunkMode == "vad" || cfg.VADModelPath != "" {
		vad = segment.NewSileroVAD("", segment.VADOptions{
			ModelPath:    cfg.VADModelPath,
			Threshold:    cfg.VADThreshold,
			MinSpeechMs:  cfg.VADMinSpeechMs,
			MinSilenceMs: cfg.VADMinSilenceMs,
		})
	}

	pipe := pipeline.New(pipeline.Deps{
		Store:       store,
		Enqueuer:    broker,
		Tools:       media.NewTools("", ""),
		VAD:         vad,
		Transcriber: engine,
		PDFWriter:   pdf.NewFPDF(),
		Downloader:  download.NewDispatch(download.NewDirectHTTP(), download.NewYtDlp("")),
		Uploader:    uploader,
		ErrorSink:   errorlog.NewFileSink(filepath.Join(cfg.StorageRoot, "errors.jsonl")),
		Metrics:     m,
		Config: pipeline.SegmenterConfig{
			ChunkMode:          cfg.ChunkMode,
			SilenceDB:          cfg.SilenceDB,
			SilenceMinDuration: cfg.SilenceMinDuration,
			MaxChunkSeconds:    cfg.MaxChunkSeconds,
			MaxParallelChunks:  cfg.MaxParallelChunks,
			SponsorText:        cfg.SponsorText,
		},
		Logger: logger,
	})

	handlers := server.NewHandlers(store, broker, server.Defaults{
		Language:          cfg.DefaultLanguage,
		ChunkMode:         cfg.ChunkMode,
		MaxParallelChunks: cfg.MaxParallelChunks,
	}, logger, m)

	return &Dependencies{
		Store:       store,
		Queue:       broker,
		Pipeline:    pipe,
		Metrics:     m,
		Handler:     server.NewRouter(handlers, logger, server.DefaultConfig()),
		redisClient: rdb,
	}, nil
}

// NewWorker builds the queue worker with the configured retry policy and
// the stage handlers for the named queues registered (all stages when
// queues is empty). Retry exhaustion marks the job failed.
func (d *Dependencies) NewWorker(cfg *config.Config, logger *slog.Logger, queues []string) *queue.Worker {
	w := queue.NewWorker(d.Queue, logger,
		queue.WithRetryPolicy(queue.RetryPolicy{
			Max:       cfg.RetryMax,
			Intervals: cfg.RetryIntervals(),
		}),
		queue.WithExhaustedFunc(func(ctx context.Context, jobID string, _ error) {
			d.Pipeline.MarkFailed(ctx, jobID)
		}),
	)

	handlers := map[string]queue.Handler{
		queue.QueueSplitter:    d.Pipeline.Split,
		queue.QueueTranscriber: d.Pipeline.Transcribe,
		queue.QueueMerger:      d.Pipeline.Merge,
		queue.QueuePackager:    d.Pipeline.Package,
	}
	if len(queues) == 0 {
		queues = queue.Names()
	}
	for _, name := range queues {
		if h, ok := handlers[name]; ok {
			w.Register(name, h)
		}
	}
	return w
}

// Close releases shared resources.
func (d *Dependencies) Close() error {
	if d.redisClient != nil {
		return d.redisClient.Close()
	}
	return nil
}

func newRedisClient(cfg *config.Config) (*redis.Client, error) {
	url := cfg.RedisURL
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func newEngine(cfg *config.Config, logger *slog.Logger) (asr.ChunkTranscriber, error) {
	switch cfg.Engine {
	case asr.EngineOpenAI:
		engine, err := asr.NewOpenAI(cfg.OpenAIAPIKey, "")
		if err != nil {
			return nil, fmt.Errorf("configure openai engine: %w", err)
		}
		logger.Info("transcription engine configured", slog.String("engine", "openai"))
		return engine, nil

	case asr.EngineWhisperCLI, "":
		logger.Info("transcription engine configured",
			slog.String("engine", "whisper-cli"),
			slog.String("model", cfg.WhisperModel),
			slog.String("device", cfg.WhisperDevice),
			slog.String("compute", cfg.WhisperCompute),
		)
		return asr.NewWhisperCLI("", cfg.WhisperModel), nil

	default:
		return nil, fmt.Errorf("unknown TRANSCRIPTION_ENGINE %q", cfg.Engine)
	}
}

func newUploader(cfg *config.Config, logger *slog.Logger) (storage.Uploader, error) {
	if !cfg.S3Enabled() {
		return storage.NoUpload{}, nil
	}

	uploader, err := storage.NewS3Uploader(storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 uploader: %w", err)
	}
	logger.Info("S3 archive upload configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return uploader, nil
}
