package asr

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ErrOpenAIKeyMissing is returned when the openai engine is selected without
// an API key.
var ErrOpenAIKeyMissing = errors.New("openai engine requires OPENAI_API_KEY")

// OpenAI transcribes chunks through the hosted Whisper API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates the engine. model defaults to whisper-1.
func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrOpenAIKeyMissing
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAI{client: openai.NewClient(apiKey), model: model}, nil
}

// TranscribeChunk implements ChunkTranscriber.
func (o *OpenAI) TranscribeChunk(ctx context.Context, wavPath, language string) ([]RawSegment, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: wavPath,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	segments := make([]RawSegment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, RawSegment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}

	// Some responses carry text but no segment list; fall back to a single
	// span so the transcript is not silently empty.
	if len(segments) == 0 && resp.Text != "" {
		segments = append(segments, RawSegment{Start: 0, End: resp.Duration, Text: resp.Text})
	}
	return segments, nil
}

var _ ChunkTranscriber = (*OpenAI)(nil)
