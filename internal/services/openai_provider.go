package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"scribe/internal/models"
)

// DefaultOpenAIChatModel is used when no completion model is configured.
const DefaultOpenAIChatModel = openai.GPT4oMini

// OpenAIProvider implements CompletionService with the chat completions API.
// Any OpenAI-compatible server works through baseURL.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(cfg)
}

// NewOpenAIProvider creates a new OpenAI completion provider.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY") // Fallback to env var
	}
	if apiKey == "" {
		log.Warn("OpenAI API key not provided. OpenAI completion provider will be disabled.")
		return &OpenAIProvider{client: nil, model: model}
	}
	if model == "" {
		model = DefaultOpenAIChatModel
	}
	log.Infof("OpenAI completion provider initialized with model %s", model)
	return &OpenAIProvider{client: newOpenAIClient(apiKey, baseURL), model: model}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return "openai" }

// ModelName returns the specific model identifier.
func (p *OpenAIProvider) ModelName() string { return p.model }

func (p *OpenAIProvider) GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("%w: OpenAI provider is not initialized (missing API key)", models.ErrConfiguration)
	}

	req := openai.ChatCompletionRequest{Model: p.model}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", upstreamError("openai completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: %w: no completion choices returned", models.ErrUpstream)
	}
	log.Debugf("openai completion used %d prompt and %d completion tokens", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Status returns the operational status of the provider.
func (p *OpenAIProvider) Status() ProviderStatus {
	if p.client == nil {
		return ProviderStatusDisabled
	}
	return ProviderStatusActive
}

var _ CompletionService = (*OpenAIProvider)(nil)
