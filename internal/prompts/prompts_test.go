package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "meeting-protocol-detailed", Normalize("  Meeting Protocol Detailed "))
	assert.Equal(t, "action-items", Normalize("Action__Items"))
	assert.Equal(t, "a-b", Normalize("a \t _ b"))
	assert.Equal(t, "bullet", Normalize(""))
	assert.Equal(t, "bullet", Normalize("   "))
}

func TestSelect(t *testing.T) {
	tests := []struct {
		label    string
		expected Kind
	}{
		{"Meeting Protocol Detailed", KindDetailedMinutes},
		{"protokoll_ausfuehrlich", KindDetailedMinutes},
		{"long protocol", KindDetailedMinutes},
		{"protocol", KindConciseMinutes},
		{"Protokoll", KindConciseMinutes},
		{"kurz", KindConciseMinutes},
		{"short", KindConciseMinutes},
		{"kompakt", KindConciseMinutes},
		{"knapp", KindConciseMinutes},
		{"compact summary", KindConciseMinutes},
		{"executive", KindExecutive},
		{"Executive", KindExecutive},
		{"executive summary", KindBullet},
		{"action", KindActionItems},
		{"action-items", KindActionItems},
		{"Action Items", KindActionItems},
		{"actions", KindActionItems},
		{"bullet", KindBullet},
		{"", KindBullet},
		{"something else entirely", KindBullet},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.expected, Select(tt.label))
		})
	}
}

func TestBuild(t *testing.T) {
	transcript := "Hallo zusammen.\nWir beginnen."
	prompt := Build("kurz", transcript)

	assert.True(t, strings.HasPrefix(prompt, Template(KindConciseMinutes)))
	assert.True(t, strings.HasSuffix(prompt, transcript), "transcript must be appended verbatim")

	// Same label, same shape.
	assert.Equal(t, Build("kurz", "x"), Build("kurz", "x"))
}

func TestTemplatesCarryLanguageRule(t *testing.T) {
	for _, k := range []Kind{KindDetailedMinutes, KindConciseMinutes, KindExecutive, KindActionItems, KindBullet} {
		tpl := Template(k)
		assert.Contains(t, tpl, "same language as the transcript", "kind %s", k)
		assert.Contains(t, tpl, "Return only the requested content", "kind %s", k)
	}
	assert.Equal(t, Template(KindBullet), Template(Kind("unknown")))
}
