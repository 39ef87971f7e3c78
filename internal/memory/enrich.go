package memory

import (
	"strings"
	"unicode/utf8"
)

// Query enrichment limits for short follow-up messages
const (
	shortFollowUpChars   = 60
	enrichSummaryChars   = 200
	enrichAssistantChars = 300
)

// EnrichQuery prefixes a short follow-up message ("give me the recipe") with
// the head of the rolling summary and the last assistant reply so the
// similarity search has something to match on. Longer messages pass through.
func EnrichQuery(message, summary, lastAssistant string) string {
	if utf8.RuneCountInString(message) >= shortFollowUpChars {
		return message
	}

	parts := make([]string, 0, 3)
	if summary != "" {
		parts = append(parts, headRunes(summary, enrichSummaryChars))
	}
	if lastAssistant != "" {
		parts = append(parts, headRunes(lastAssistant, enrichAssistantChars))
	}
	if len(parts) == 0 {
		return message
	}

	return strings.Join(append(parts, message), " ")
}

func headRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
