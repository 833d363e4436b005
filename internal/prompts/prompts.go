// Package prompts maps a free-text summary style label to a prompt template.
package prompts

import (
	"regexp"
	"strings"

	"scribe/internal/models"
)

// Kind identifies one of the summarization templates.
type Kind string

const (
	KindDetailedMinutes Kind = "detailed-minutes"
	KindConciseMinutes  Kind = "concise-minutes"
	KindExecutive       Kind = "executive"
	KindActionItems     Kind = "action-items"
	KindBullet          Kind = "bullet"
)

var separatorRun = regexp.MustCompile(`[\s_]+`)

var (
	protocolWords = []string{"protocol", "protokoll"}
	detailedWords = []string{"detailed", "ausfuehrlich", "long"}
	conciseWords  = []string{"compact", "kompakt", "knapp", "kurz", "short"}
)

const languageRule = "Respond in the same language as the transcript. Return only the requested content, without any preamble."

var templates = map[Kind]string{
	KindDetailedMinutes: "Write detailed meeting minutes for the transcript below. " +
		"Use headings for: Overview, Discussion highlights, Decisions, Tasks (with owner and due date when mentioned), Open questions. " +
		"Omit any section that is not mentioned in the transcript. " + languageRule,
	KindConciseMinutes: "Write concise meeting minutes for the transcript below as 5-8 bullet points " +
		"covering the topics discussed, the decisions taken and the tasks assigned. " + languageRule,
	KindExecutive: "Write an executive summary of the transcript below in 5-8 sentences. " +
		"Focus on outcomes, risks and decisions. " + languageRule,
	KindActionItems: "List only the action items from the transcript below as a bullet list. " +
		"Include the owner and due date when they are mentioned. " + languageRule,
	KindBullet: "Summarize the transcript below as a concise bullet-point list of the key points. " + languageRule,
}

// Normalize lowercases a label and collapses whitespace and underscores into
// single hyphens. An empty label becomes the default style.
func Normalize(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = separatorRun.ReplaceAllString(s, "-")
	if s == "" {
		return models.DefaultSummaryStyle
	}
	return s
}

// Select classifies a style label. First match wins.
func Select(label string) Kind {
	s := Normalize(label)
	switch {
	case containsAny(s, protocolWords) && containsAny(s, detailedWords):
		return KindDetailedMinutes
	case containsAny(s, protocolWords) || containsAny(s, conciseWords):
		return KindConciseMinutes
	case s == "executive":
		return KindExecutive
	case s == "action" || s == "action-items" || s == "actions":
		return KindActionItems
	default:
		return KindBullet
	}
}

// Template returns the instruction text for a kind.
func Template(k Kind) string {
	if t, ok := templates[k]; ok {
		return t
	}
	return templates[KindBullet]
}

// Build returns the full prompt: the selected template followed by the
// transcript verbatim.
func Build(label, transcript string) string {
	return Template(Select(label)) + "\n\nTranscript:\n" + transcript
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
