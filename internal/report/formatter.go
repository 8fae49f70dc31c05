// Package report cleans raw model output into the text returned to users.
package report

import (
	"regexp"
	"strings"
)

// Boilerplate lead-in phrases removed from the start of a completion.
var boilerplatePrefixes = []string{
	"Based on the information provided,",
	"According to your health data,",
	"Here are my recommendations:",
	"I recommend the following:",
}

// blankRun matches a newline followed by one or more whitespace-only lines.
var blankRun = regexp.MustCompile(`\n[ \t\r\f\v]*\n(?:[ \t\r\f\v]*\n)*`)

// Format trims the completion, strips leading boilerplate and collapses runs
// of blank lines to a single blank line. Format(Format(x)) == Format(x).
func Format(raw string) string {
	text := strings.TrimSpace(raw)
	text = stripBoilerplate(text)
	return blankRun.ReplaceAllString(text, "\n\n")
}

func stripBoilerplate(text string) string {
	for {
		stripped := false
		for _, prefix := range boilerplatePrefixes {
			if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
				text = strings.TrimSpace(text[len(prefix):])
				stripped = true
				break
			}
		}
		if !stripped {
			return text
		}
	}
}
