package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "trims whitespace",
			raw:      "  \n**1. Short-Term Risks**\nYou may be dehydrated.\n\n ",
			expected: "**1. Short-Term Risks**\nYou may be dehydrated.",
		},
		{
			name:     "strips boilerplate case-insensitively",
			raw:      "BASED ON THE INFORMATION PROVIDED, your blood pressure of 120/80 mmHg is normal.",
			expected: "your blood pressure of 120/80 mmHg is normal.",
		},
		{
			name:     "strips stacked boilerplate",
			raw:      "Here are my recommendations:\n\nI recommend the following: walk daily.",
			expected: "walk daily.",
		},
		{
			name:     "collapses blank line runs",
			raw:      "Warnings\n\n\n\nNone.\n \n\t\nAdvice\nSleep more.",
			expected: "Warnings\n\nNone.\n\nAdvice\nSleep more.",
		},
		{
			name:     "keeps single blank lines and inner text",
			raw:      "A\n\nB  with  spaces\nC",
			expected: "A\n\nB  with  spaces\nC",
		},
		{
			name:     "phrase not at start is kept",
			raw:      "Your glucose is high. Based on the information provided, cut sugar.",
			expected: "Your glucose is high. Based on the information provided, cut sugar.",
		},
		{
			name:     "empty",
			raw:      "  \n\n ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.raw))
		})
	}
}

func TestFormat_Idempotent(t *testing.T) {
	inputs := []string{
		"According to your health data,\n\n\n\n**1. Short-Term Risks**\n\n\n\nYou may...",
		"Based on the information provided,   Here are my recommendations:\n  \n  \nDrink water.",
		"\r\n\r\nline\r\n\r\n\r\nline",
		"plain text",
		"",
		"I recommend the following:",
	}

	for _, in := range inputs {
		once := Format(in)
		assert.Equal(t, once, Format(once), "input %q", in)
	}
}

func TestFormat_BoilerplateRemovedOnly(t *testing.T) {
	body := "**1. Short-Term Risks**\nYour resting heart rate of 105 bpm is high."
	for _, prefix := range boilerplatePrefixes {
		out := Format(prefix + " " + body)
		assert.Equal(t, body, out)
		assert.False(t, strings.HasPrefix(strings.ToLower(out), strings.ToLower(prefix)))
	}
}
