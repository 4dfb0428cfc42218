package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTools_Defaults(t *testing.T) {
	tools := NewTools("", "")
	assert.Equal(t, "ffmpeg", tools.ffmpegPath)
	assert.Equal(t, "ffprobe", tools.ffprobePath)

	tools = NewTools("/opt/ffmpeg/bin/ffmpeg", "/opt/ffmpeg/bin/ffprobe")
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", tools.ffmpegPath)
}

func TestTools_MissingBinary(t *testing.T) {
	tools := NewTools("/nonexistent/ffmpeg", "/nonexistent/ffprobe")
	ctx := context.Background()

	err := tools.NormalizeWAV(ctx, "in.mp4", t.TempDir()+"/out.wav")
	assert.Error(t, err)

	_, err = tools.ProbeDuration(ctx, "in.wav")
	assert.Error(t, err)

	_, err = tools.SilenceDetect(ctx, "in.wav", "-35dB", 0.6)
	assert.Error(t, err)
}
