package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// WhisperCLI shells out to the whisper.cpp command-line tool and reads back
// its JSON output file.
type WhisperCLI struct {
	binaryPath string
	modelPath  string
}

// NewWhisperCLI creates the engine. binaryPath defaults to "whisper-cli".
func NewWhisperCLI(binaryPath, modelPath string) *WhisperCLI {
	if binaryPath == "" {
		binaryPath = "whisper-cli"
	}
	return &WhisperCLI{binaryPath: binaryPath, modelPath: modelPath}
}

// whisperOutput mirrors the JSON file whisper.cpp writes with --output-json:
// segment offsets are milliseconds from the start of the input.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// TranscribeChunk implements ChunkTranscriber.
func (w *WhisperCLI) TranscribeChunk(ctx context.Context, wavPath, language string) ([]RawSegment, error) {
	outDir, err := os.MkdirTemp("", "whisper-out-")
	if err != nil {
		return nil, fmt.Errorf("create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	outPrefix := filepath.Join(outDir, "chunk")

	args := []string{
		"-f", wavPath,
		"-l", language,
		"--output-json",
		"-of", outPrefix,
		"--no-prints",
	}
	if w.modelPath != "" {
		args = append([]string{"-m", w.modelPath}, args...)
	}

	cmd := exec.CommandContext(ctx, w.binaryPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper-cli: %w, stderr: %s", err, stderr.String())
	}

	raw, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}

	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]RawSegment, 0, len(out.Transcription))
	for _, s := range out.Transcription {
		segments = append(segments, RawSegment{
			Start: float64(s.Offsets.From) / 1000,
			End:   float64(s.Offsets.To) / 1000,
			Text:  s.Text,
		})
	}
	return segments, nil
}

var _ ChunkTranscriber = (*WhisperCLI)(nil)
