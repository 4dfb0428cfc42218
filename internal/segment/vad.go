package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

// vadSampleRate is the sample rate the VAD operates at; speech timestamps
// come back in sample frames at this rate.
const vadSampleRate = 16000

// SpeechSpan is one detected speech region in sample frames.
type SpeechSpan struct {
	StartFrame int64 `json:"start"`
	EndFrame   int64 `json:"end"`
}

// VAD detects speech regions in a 16 kHz WAV file.
type VAD interface {
	DetectSpeech(ctx context.Context, wavPath string) ([]SpeechSpan, error)
}

// VADOptions tune the detector.
type VADOptions struct {
	ModelPath    string
	Threshold    float64
	MinSpeechMs  int
	MinSilenceMs int
}

// ErrVADModelMissing is returned when CHUNK_MODE=vad is requested without a
// configured model.
var ErrVADModelMissing = errors.New("silero VAD model path is not configured")

// SpansToIntervals converts frame-based speech spans to second-based
// intervals, dropping empty spans. When no speech was detected the whole
// track becomes one interval so the pipeline still produces output.
func SpansToIntervals(spans []SpeechSpan, totalSeconds float64) []Interval {
	var intervals []Interval
	for _, span := range spans {
		start := float64(span.StartFrame) / vadSampleRate
		end := float64(span.EndFrame) / vadSampleRate
		if end > start {
			intervals = append(intervals, Interval{Start: start, End: end})
		}
	}

	if len(intervals) == 0 && totalSeconds > 0 {
		intervals = []Interval{{Start: 0, End: totalSeconds}}
	}
	return intervals
}

// SileroVAD shells out to the silero helper script, which loads the ONNX
// model and prints speech timestamps (sample frames) as JSON on stdout.
type SileroVAD struct {
	helperPath string
	opts       VADOptions
}

// NewSileroVAD creates a VAD backed by the helper executable. helperPath
// defaults to "silero-vad-cli".
func NewSileroVAD(helperPath string, opts VADOptions) *SileroVAD {
	if helperPath == "" {
		helperPath = "silero-vad-cli"
	}
	return &SileroVAD{helperPath: helperPath, opts: opts}
}

// DetectSpeech implements VAD.
func (v *SileroVAD) DetectSpeech(ctx context.Context, wavPath string) ([]SpeechSpan, error) {
	if v.opts.ModelPath == "" {
		return nil, ErrVADModelMissing
	}

	cmd := exec.CommandContext(ctx, v.helperPath,
		"--model", v.opts.ModelPath,
		"--threshold", fmt.Sprintf("%g", v.opts.Threshold),
		"--min-speech-ms", fmt.Sprintf("%d", v.opts.MinSpeechMs),
		"--min-silence-ms", fmt.Sprintf("%d", v.opts.MinSilenceMs),
		"--sample-rate", fmt.Sprintf("%d", vadSampleRate),
		wavPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("silero vad: %w, stderr: %s", err, stderr.String())
	}

	var spans []SpeechSpan
	if err := json.Unmarshal(stdout.Bytes(), &spans); err != nil {
		return nil, fmt.Errorf("parse vad output: %w", err)
	}
	return spans, nil
}

var _ VAD = (*SileroVAD)(nil)
