package services

import (
	"context"
	"encoding/json"
	"io"
)

// ProviderStatus reports whether a collaborator can serve requests.
type ProviderStatus string

const (
	ProviderStatusActive   ProviderStatus = "active"
	ProviderStatusDisabled ProviderStatus = "disabled"
)

// TranscriptionOptions is derived from job params per file.
type TranscriptionOptions struct {
	Model        string
	Language     string
	OutputFormat string
	Timestamps   bool
}

// TranscriptionResult is the transcript text plus the provider's raw answer,
// which may be a JSON object or a JSON string.
type TranscriptionResult struct {
	Transcript string
	Raw        json.RawMessage
}

// Transcriber turns one media stream into text.
type Transcriber interface {
	Transcribe(ctx context.Context, media io.Reader, filename, mimeType string, opts TranscriptionOptions) (*TranscriptionResult, error)
	Name() string
	Status() ProviderStatus
}

// Translator translates a transcript. sourceLanguage may be empty.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) (string, error)
}

// SummaryService answers a fully built summarization prompt.
type SummaryService interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}
