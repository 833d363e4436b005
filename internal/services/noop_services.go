package services

import (
	"context"
	"fmt"

	"scribe/internal/models"
)

// DisabledCompletionService stands in for an unconfigured provider. Every
// call reports a configuration error instead of an empty answer.
type DisabledCompletionService struct {
	Provider string
}

func (s *DisabledCompletionService) GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	return "", fmt.Errorf("%w: completion provider %q is not configured", models.ErrConfiguration, s.Provider)
}

func (s *DisabledCompletionService) Status() ProviderStatus { return ProviderStatusDisabled }
func (s *DisabledCompletionService) Name() string           { return s.Provider }
func (s *DisabledCompletionService) ModelName() string      { return "" }

// NewDisabledCompletionService returns a provider that always refuses.
func NewDisabledCompletionService(provider string) CompletionService {
	return &DisabledCompletionService{Provider: provider}
}
