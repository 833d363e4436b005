package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scribe/internal/models"
)

// ChatMessageRole defines the role of the message sender (system, user, assistant).
type ChatMessageRole string

const (
	ChatMessageRoleSystem    ChatMessageRole = "system"
	ChatMessageRoleUser      ChatMessageRole = "user"
	ChatMessageRoleAssistant ChatMessageRole = "assistant" // "model" for Gemini
)

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    ChatMessageRole
	Content string
}

// CompletionService generates text from a conversation. Translation and
// summarization are both built on it.
type CompletionService interface {
	GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error)
	Status() ProviderStatus
	Name() string      // Provider name (e.g., "openai", "gemini")
	ModelName() string // Specific model used
}

// upstreamError classifies a collaborator call failure. Deadline errors
// become ErrTimeout, everything else ErrUpstream.
func upstreamError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", provider, models.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", provider, models.ErrUpstream, err)
}

// splitMessages separates system instructions from the conversation body.
func splitMessages(messages []ChatMessage) (system string, user string) {
	var sys, body []string
	for _, m := range messages {
		if m.Role == ChatMessageRoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		body = append(body, m.Content)
	}
	return strings.Join(sys, "\n\n"), strings.Join(body, "\n\n")
}
