// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrStorageRootRequired is returned when STORAGE_ROOT is not set.
	ErrStorageRootRequired = errors.New("config: STORAGE_ROOT is required")
	// ErrInvalidChunkMode is returned when CHUNK_MODE is neither "silence" nor "vad".
	ErrInvalidChunkMode = errors.New(`config: CHUNK_MODE must be "silence" or "vad"`)
)

// Config holds all configuration for the transcription service.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	StorageRoot string `env:"STORAGE_ROOT, required" json:"storage_root"`

	// Redis queue and cache settings
	RedisURL         string `env:"REDIS_URL" json:"redis_url,omitempty"`
	RetryMax         int    `env:"RQ_RETRY_MAX, default=3" json:"retry_max"`
	RetryInterval    int    `env:"RQ_RETRY_INTERVAL, default=60" json:"retry_interval"`
	RetryIntervalRaw string `env:"RQ_RETRY_INTERVALS" json:"retry_intervals,omitempty"`

	// Segmentation settings
	MaxParallelChunks  int     `env:"MAX_PARALLEL_CHUNKS, default=2" json:"max_parallel_chunks"`
	ChunkMode          string  `env:"CHUNK_MODE, default=silence" json:"chunk_mode"`
	SilenceDB          string  `env:"SILENCE_DB, default=-35dB" json:"silence_db"`
	SilenceMinDuration float64 `env:"SILENCE_MIN_DURATION, default=0.6" json:"silence_min_duration"`
	MaxChunkSeconds    int     `env:"MAX_CHUNK_SECONDS, default=120" json:"max_chunk_seconds"`

	// VAD settings (CHUNK_MODE=vad)
	VADThreshold    float64 `env:"VAD_THRESHOLD, default=0.5" json:"vad_threshold"`
	VADMinSpeechMs  int     `env:"VAD_MIN_SPEECH_MS, default=250" json:"vad_min_speech_ms"`
	VADMinSilenceMs int     `env:"VAD_MIN_SILENCE_MS, default=100" json:"vad_min_silence_ms"`
	VADModelPath    string  `env:"SILERO_VAD_MODEL_PATH" json:"silero_vad_model_path,omitempty"`

	// Transcription engine settings
	DefaultLanguage string `env:"TRANSCRIPTION_DEFAULT_LANG, default=es" json:"default_language"`
	Engine          string `env:"TRANSCRIPTION_ENGINE, default=whisper-cli" json:"engine"` // "whisper-cli" or "openai"
	WhisperModel    string `env:"TRANSCRIPTION_FW_MODEL, default=base" json:"whisper_model"`
	WhisperDevice   string `env:"TRANSCRIPTION_FW_DEVICE, default=cpu" json:"whisper_device"`
	WhisperCompute  string `env:"TRANSCRIPTION_FW_COMPUTE, default=int8" json:"whisper_compute"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY" json:"-"` // Masked in JSON

	// Packaging settings
	SponsorText string `env:"TRANSCRIPTION_SPONSOR_TEXT, default=Esta transcripcion fue patrocinada por mi Deus Raed, Akuuuuum" json:"sponsor_text"`

	// Optional S3 settings for deliverable upload
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RetryIntervals returns the retry schedule in seconds. RQ_RETRY_INTERVALS
// ("10,60,300") takes precedence; otherwise RQ_RETRY_INTERVAL repeats for
// every attempt.
func (c *Config) RetryIntervals() []int {
	if parsed := ParseRetryIntervals(c.RetryIntervalRaw); len(parsed) > 0 {
		return parsed
	}
	return []int{c.RetryInterval}
}

// ParseRetryIntervals parses a comma-separated list of seconds.
// Blank and non-numeric entries are skipped.
func ParseRetryIntervals(raw string) []int {
	var intervals []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		intervals = append(intervals, n)
	}
	return intervals
}

// Load reads configuration from environment variables using go-envconfig.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		if strings.Contains(err.Error(), "STORAGE_ROOT") {
			return nil, ErrStorageRootRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and coherent.
func (c *Config) Validate() error {
	if c.StorageRoot == "" {
		return ErrStorageRootRequired
	}
	if c.ChunkMode != "silence" && c.ChunkMode != "vad" {
		return ErrInvalidChunkMode
	}
	if c.MaxParallelChunks < 1 {
		c.MaxParallelChunks = 1
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
