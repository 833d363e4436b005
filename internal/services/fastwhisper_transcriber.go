package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"scribe/internal/models"
)

// FastWhisperTranscriber posts media to a FastWhisper gateway's
// /v1/transcriptions endpoint as multipart form data.
type FastWhisperTranscriber struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewFastWhisperTranscriber creates a gateway transcriber.
func NewFastWhisperTranscriber(baseURL, apiKey string, httpClient *http.Client) (*FastWhisperTranscriber, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%w: fastwhisper base URL is required", models.ErrConfiguration)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &FastWhisperTranscriber{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: httpClient}, nil
}

func (t *FastWhisperTranscriber) Name() string           { return "fastwhisper" }
func (t *FastWhisperTranscriber) Status() ProviderStatus { return ProviderStatusActive }

// Transcribe streams the media into the request body without buffering it.
func (t *FastWhisperTranscriber) Transcribe(ctx context.Context, media io.Reader, filename, mimeType string, opts TranscriptionOptions) (*TranscriptionResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeTranscriptionForm(mw, media, filename, mimeType, opts))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/transcriptions", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, upstreamError("fastwhisper transcription", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upstreamError("fastwhisper transcription", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fastwhisper transcription: %w: status %d: %s", models.ErrUpstream, resp.StatusCode, truncate(string(body), 512))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("fastwhisper transcription: %w: response is not JSON", models.ErrUpstream)
	}

	raw := json.RawMessage(body)
	transcript, ok := transcriptFromRaw(raw)
	if !ok {
		return nil, fmt.Errorf("fastwhisper transcription: %w: unexpected response shape", models.ErrUpstream)
	}
	log.WithFields(log.Fields{"file": filename, "chars": len(transcript)}).Debug("fastwhisper transcription done")
	return &TranscriptionResult{Transcript: transcript, Raw: raw}, nil
}

func writeTranscriptionForm(mw *multipart.Writer, media io.Reader, filename, mimeType string, opts TranscriptionOptions) error {
	fields := [][2]string{
		{"model", opts.Model},
		{"response_format", "json"},
		{"timestamps", strconv.FormatBool(opts.Timestamps)},
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, media); err != nil {
		return fmt.Errorf("stream media: %w", err)
	}
	return mw.Close()
}

var _ Transcriber = (*FastWhisperTranscriber)(nil)
