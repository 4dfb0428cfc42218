package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiredVariables(t *testing.T) {
	t.Run("missing STORAGE_ROOT returns error", func(t *testing.T) {
		t.Setenv("STORAGE_ROOT", "")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStorageRootRequired)
	})

	t.Run("STORAGE_ROOT present succeeds", func(t *testing.T) {
		t.Setenv("STORAGE_ROOT", "/var/lib/transcription")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/transcription", cfg.StorageRoot)
	})
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_ROOT", "/data")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 3, cfg.RetryMax)
	assert.Equal(t, 60, cfg.RetryInterval)
	assert.Equal(t, 2, cfg.MaxParallelChunks)
	assert.Equal(t, "silence", cfg.ChunkMode)
	assert.Equal(t, "-35dB", cfg.SilenceDB)
	assert.InDelta(t, 0.6, cfg.SilenceMinDuration, 1e-9)
	assert.Equal(t, 120, cfg.MaxChunkSeconds)
	assert.Equal(t, "es", cfg.DefaultLanguage)
	assert.Equal(t, "whisper-cli", cfg.Engine)
	assert.Equal(t, "base", cfg.WhisperModel)
	assert.Equal(t, "cpu", cfg.WhisperDevice)
	assert.Equal(t, "int8", cfg.WhisperCompute)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("STORAGE_ROOT", "/srv/jobs")
	t.Setenv("PORT", "3000")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("RQ_RETRY_MAX", "5")
	t.Setenv("RQ_RETRY_INTERVALS", "10,60,300")
	t.Setenv("MAX_PARALLEL_CHUNKS", "4")
	t.Setenv("CHUNK_MODE", "vad")
	t.Setenv("SILENCE_DB", "-40dB")
	t.Setenv("MAX_CHUNK_SECONDS", "90")
	t.Setenv("TRANSCRIPTION_DEFAULT_LANG", "en")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 5, cfg.RetryMax)
	assert.Equal(t, []int{10, 60, 300}, cfg.RetryIntervals())
	assert.Equal(t, 4, cfg.MaxParallelChunks)
	assert.Equal(t, "vad", cfg.ChunkMode)
	assert.Equal(t, "-40dB", cfg.SilenceDB)
	assert.Equal(t, 90, cfg.MaxChunkSeconds)
	assert.Equal(t, "en", cfg.DefaultLanguage)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_InvalidChunkMode(t *testing.T) {
	t.Setenv("STORAGE_ROOT", "/data")
	t.Setenv("CHUNK_MODE", "energy")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidChunkMode)
}

func TestParseRetryIntervals(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []int
	}{
		{"empty", "", nil},
		{"single", "30", []int{30}},
		{"schedule", "10,60,300", []int{10, 60, 300}},
		{"spaces tolerated", " 10 , 60 ", []int{10, 60}},
		{"junk skipped", "10,abc,20", []int{10, 20}},
		{"only junk", "abc,,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseRetryIntervals(tt.raw))
		})
	}
}

func TestConfig_RetryIntervals_Fallback(t *testing.T) {
	cfg := &Config{RetryInterval: 45}
	assert.Equal(t, []int{45}, cfg.RetryIntervals())

	cfg.RetryIntervalRaw = "5,15"
	assert.Equal(t, []int{5, 15}, cfg.RetryIntervals())
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	cfg := &Config{LogFormat: "json", LogLevel: "debug"}
	logger := cfg.NewLogger()
	require.NotNil(t, logger)

	cfg = &Config{LogFormat: "text", LogLevel: "bogus"}
	logger = cfg.NewLogger()
	require.NotNil(t, logger)
}
