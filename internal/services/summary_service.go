package services

import (
	"context"
	"fmt"
	"strings"
)

// CompletionSummaryService implements SummaryService on a CompletionService.
// The prompt already contains instructions and transcript.
type CompletionSummaryService struct {
	completer CompletionService
}

// NewCompletionSummaryService creates a summary service over a provider.
func NewCompletionSummaryService(completer CompletionService) *CompletionSummaryService {
	return &CompletionSummaryService{completer: completer}
}

// Model returns the model the summaries come from.
func (s *CompletionSummaryService) Model() string {
	return s.completer.ModelName()
}

func (s *CompletionSummaryService) Summarize(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("summarize: empty prompt")
	}
	out, err := s.completer.GenerateChatCompletion(ctx, []ChatMessage{
		{Role: ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return out, nil
}

var _ SummaryService = (*CompletionSummaryService)(nil)
