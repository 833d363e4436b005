package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxChunkChars bounds one translation request.
const DefaultMaxChunkChars = 4000

const translationSystemPrompt = "You are a professional translator. Translate the user's text faithfully. " +
	"Keep paragraph structure and speaker labels. Return only the translation, without any preamble."

// CompletionTranslator translates through a CompletionService. Long texts
// are cut on sentence boundaries and translated chunk by chunk in order.
type CompletionTranslator struct {
	completer     CompletionService
	tokenizer     *sentences.DefaultSentenceTokenizer
	maxChunkChars int
}

// NewCompletionTranslator creates a translator over a completion provider.
func NewCompletionTranslator(completer CompletionService, maxChunkChars int) (*CompletionTranslator, error) {
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultMaxChunkChars
	}
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence tokenizer: %w", err)
	}
	return &CompletionTranslator{completer: completer, tokenizer: tokenizer, maxChunkChars: maxChunkChars}, nil
}

// Translate translates text into targetLanguage.
func (t *CompletionTranslator) Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	instruction := fmt.Sprintf("Translate the following text into %s.", targetLanguage)
	if sourceLanguage != "" {
		instruction = fmt.Sprintf("Translate the following text from %s into %s.", sourceLanguage, targetLanguage)
	}

	paragraphs := strings.Split(text, "\n\n")
	out := make([]string, 0, len(paragraphs))
	for _, para := range paragraphs {
		chunks := t.Chunk(para)
		translated := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			res, err := t.completer.GenerateChatCompletion(ctx, []ChatMessage{
				{Role: ChatMessageRoleSystem, Content: translationSystemPrompt},
				{Role: ChatMessageRoleUser, Content: instruction + "\n\n" + chunk},
			})
			if err != nil {
				return "", fmt.Errorf("translate: %w", err)
			}
			translated = append(translated, res)
		}
		out = append(out, strings.Join(translated, " "))
	}
	log.WithFields(log.Fields{"target": targetLanguage, "paragraphs": len(paragraphs)}).Debug("translation done")
	return strings.Join(out, "\n\n"), nil
}

// Chunk groups whole sentences into pieces no longer than maxChunkChars. A
// single sentence above the limit is kept whole.
func (t *CompletionTranslator) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= t.maxChunkChars {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	for _, s := range t.tokenizer.Tokenize(text) {
		sent := strings.TrimSpace(s.Text)
		if sent == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+1+len(sent) > t.maxChunkChars {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(sent)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

var _ Translator = (*CompletionTranslator)(nil)
