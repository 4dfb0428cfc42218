// Package media wraps the ffmpeg and ffprobe CLIs for the operations the
// pipeline needs: normalizing source media to canonical WAV, probing
// durations, running silence detection, and exporting chunk clips.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Tools invokes ffmpeg and ffprobe. Empty paths resolve from PATH.
type Tools struct {
	ffmpegPath  string
	ffprobePath string
}

// NewTools creates a Tools instance. Empty arguments default to "ffmpeg"
// and "ffprobe".
func NewTools(ffmpegPath, ffprobePath string) *Tools {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Tools{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// NormalizeWAV converts inputPath to a mono 16 kHz signed-16-bit-LE WAV at
// outputPath, stripping any video stream.
func (t *Tools) NormalizeWAV(ctx context.Context, inputPath, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-ac", "1",
		"-ar", "16000",
		"-vn",
		"-c:a", "pcm_s16le",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg normalize: %w, stderr: %s", err, stderr.String())
	}
	return nil
}

// ExportClip extracts [start, end) from inputWav into a mono 16 kHz s16le
// clip at outputPath. The duration is clamped to at least 0.01 s so ffmpeg
// never receives a zero-length command. The clip lands under a temp name
// and is renamed on success, so a crashed export never leaves a partial
// chunk behind.
func (t *Tools) ExportClip(ctx context.Context, inputWav, outputPath string, start, end float64) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	duration := end - start
	if duration < 0.01 {
		duration = 0.01
	}

	tmpPath := outputPath + ".tmp.wav"
	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputWav,
		"-ss", fmt.Sprintf("%.3f", start),
		"-t", fmt.Sprintf("%.3f", duration),
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("ffmpeg export clip: %w, stderr: %s", err, stderr.String())
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename clip into place: %w", err)
	}
	return nil
}

// ProbeDuration returns the duration of a media file in seconds.
func (t *Tools) ProbeDuration(ctx context.Context, mediaPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w, stderr: %s", err, stderr.String())
	}

	raw := strings.TrimSpace(stdout.String())
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", raw, err)
	}
	return duration, nil
}

// SilenceDetect runs the silencedetect filter over mediaPath and returns the
// raw filter output. ffmpeg writes silencedetect lines to stderr; the null
// muxer makes the command exit non-zero on some builds, so the exit status
// is ignored as long as output was produced.
func (t *Tools) SilenceDetect(ctx context.Context, mediaPath, silenceDB string, minDuration float64) (string, error) {
	filter := fmt.Sprintf("silencedetect=noise=%s:d=%g", silenceDB, minDuration)

	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-hide_banner",
		"-i", mediaPath,
		"-af", filter,
		"-f", "null",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	output := stderr.String() + "\n" + stdout.String()
	if runErr != nil && strings.TrimSpace(output) == "" {
		return "", fmt.Errorf("ffmpeg silencedetect: %w", runErr)
	}
	return output, nil
}
