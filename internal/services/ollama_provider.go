package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"scribe/internal/models"
)

// DefaultOllamaModel is used when no completion model is configured.
const DefaultOllamaModel = "llama3.1"

// OllamaProvider implements CompletionService against Ollama's
// /api/generate endpoint with streaming disabled.
type OllamaProvider struct {
	baseURL string
	model   string
	http    *http.Client
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaProvider creates an Ollama completion provider. An empty baseURL
// disables it.
func NewOllamaProvider(baseURL, model string, httpClient *http.Client) *OllamaProvider {
	if model == "" {
		model = DefaultOllamaModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		log.Warn("Ollama base URL not provided. Ollama provider will be disabled.")
	}
	return &OllamaProvider{baseURL: strings.TrimRight(baseURL, "/"), model: model, http: httpClient}
}

func (p *OllamaProvider) Name() string      { return "ollama" }
func (p *OllamaProvider) ModelName() string { return p.model }

func (p *OllamaProvider) Status() ProviderStatus {
	if p.baseURL == "" {
		return ProviderStatusDisabled
	}
	return ProviderStatusActive
}

func (p *OllamaProvider) GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	if p.baseURL == "" {
		return "", fmt.Errorf("%w: Ollama provider has no base URL", models.ErrConfiguration)
	}
	system, prompt := splitMessages(messages)
	body, err := json.Marshal(ollamaGenerateRequest{Model: p.model, Prompt: prompt, System: system, Stream: false})
	if err != nil {
		return "", fmt.Errorf("encode ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", upstreamError("ollama completion", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", upstreamError("ollama completion", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("ollama completion: %w: status %d: %s", models.ErrUpstream, resp.StatusCode, truncate(string(raw), 512))
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ollama completion: %w: malformed response: %v", models.ErrUpstream, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama completion: %w: %s", models.ErrUpstream, out.Error)
	}
	return strings.TrimSpace(out.Response), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ CompletionService = (*OllamaProvider)(nil)
