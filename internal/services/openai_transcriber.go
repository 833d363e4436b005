package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"scribe/internal/models"
)

// OpenAITranscriber uses an OpenAI-compatible audio transcription endpoint
// with verbose JSON so duration and segments come back.
type OpenAITranscriber struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAITranscriber creates an OpenAI audio transcriber.
func NewOpenAITranscriber(apiKey, baseURL, defaultModel string) (*OpenAITranscriber, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required for transcription", models.ErrConfiguration)
	}
	if defaultModel == "" {
		defaultModel = openai.Whisper1
	}
	return &OpenAITranscriber{client: newOpenAIClient(apiKey, baseURL), defaultModel: defaultModel}, nil
}

func (t *OpenAITranscriber) Name() string           { return "openai" }
func (t *OpenAITranscriber) Status() ProviderStatus { return ProviderStatusActive }

// Transcribe maps the job's model onto the provider; the whisper size names
// used by gateway jobs fall back to the configured default.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, media io.Reader, filename, mimeType string, opts TranscriptionOptions) (*TranscriptionResult, error) {
	model := opts.Model
	switch model {
	case "", "tiny", "base", "small", "medium", "large", "large-v2", "large-v3":
		model = t.defaultModel
	}

	req := openai.AudioRequest{
		Model:    model,
		FilePath: filename,
		Reader:   media,
		Language: opts.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, upstreamError("openai transcription", err)
	}

	raw := struct {
		Text     string           `json:"text"`
		Language string           `json:"language,omitempty"`
		Duration float64          `json:"duration"`
		Segments []models.Segment `json:"segments,omitempty"`
	}{Text: resp.Text, Language: resp.Language, Duration: resp.Duration}
	for _, s := range resp.Segments {
		raw.Segments = append(raw.Segments, models.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode raw transcription: %w", err)
	}
	return &TranscriptionResult{Transcript: strings.TrimSpace(resp.Text), Raw: b}, nil
}

var _ Transcriber = (*OpenAITranscriber)(nil)
