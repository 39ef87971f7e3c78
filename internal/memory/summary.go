package memory

import (
	"strings"

	"github.com/Rrens/chat-memory/internal/domain"
)

// ShouldUpdateSummary reports whether the session's message count lands on a
// refresh boundary. It is checked after every stored message.
func ShouldUpdateSummary(messageCount, interval int) bool {
	if interval <= 0 {
		return false
	}
	return messageCount > 0 && messageCount%interval == 0
}

// BuildTranscript renders the last window messages as "{label}: {content}" lines
func BuildTranscript(messages []domain.Message, window int, locale Locale) string {
	if window > 0 && len(messages) > window {
		messages = messages[len(messages)-window:]
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, locale.RoleLabel(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// BuildSummaryPrompt assembles the refresh prompt. The previous-summary block
// is emitted only when a summary exists.
func BuildSummaryPrompt(previousSummary, transcript string, locale Locale) string {
	var sb strings.Builder

	if previousSummary != "" {
		sb.WriteString(locale.PreviousSummary)
		sb.WriteString("\n")
		sb.WriteString(previousSummary)
		sb.WriteString("\n\n")
	}

	sb.WriteString(locale.RecentMessages)
	sb.WriteString("\n")
	sb.WriteString(transcript)
	sb.WriteString("\n\n---\n")
	sb.WriteString(locale.Instructions)

	return sb.String()
}
