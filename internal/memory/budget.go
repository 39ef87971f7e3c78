package memory

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/Rrens/chat-memory/internal/config"
	"github.com/Rrens/chat-memory/internal/domain"
)

const ellipsis = "..."

// Budget trims conversation context to a token ceiling
type Budget struct {
	MaxTokens          int
	CharsPerToken      int
	MinHistoryMessages int
	MinSummaryTokens   int
}

// ContextBudget is the per-turn result of trimming. It is never persisted.
type ContextBudget struct {
	Messages        []domain.Message
	Summary         string
	TrimmedCount    int
	EstimatedTokens int
}

// NewBudget creates a budget from the memory configuration
func NewBudget(cfg config.MemoryConfig) Budget {
	return Budget{
		MaxTokens:          cfg.MaxContextTokens,
		CharsPerToken:      cfg.CharsPerToken,
		MinHistoryMessages: cfg.MinHistoryMessages,
		MinSummaryTokens:   cfg.MinSummaryTokens,
	}
}

// EstimateTokens approximates the token count as ceil(chars/4).
// Characters are UTF-16 code units, so a character outside the BMP
// (most emoji) counts as two.
func EstimateTokens(s string) int {
	return estimate(s, 4)
}

// EstimateTokens approximates the token count with the budget's ratio
func (b Budget) EstimateTokens(s string) int {
	return estimate(s, b.charsPerToken())
}

func estimate(s string, charsPerToken int) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return (n + charsPerToken - 1) / charsPerToken
}

func (b Budget) charsPerToken() int {
	if b.CharsPerToken <= 0 {
		return 4
	}
	return b.CharsPerToken
}

// Trim drops the oldest messages until the total fits MaxTokens or only
// MinHistoryMessages remain, then truncates the summary as a last resort.
// A non-positive MaxTokens disables trimming. The input slice is not modified.
func (b Budget) Trim(messages []domain.Message, summary string) ContextBudget {
	total := 0
	for _, m := range messages {
		total += b.EstimateTokens(m.Content)
	}
	if summary != "" {
		total += b.EstimateTokens(summary)
	}

	result := messages
	trimmed := 0

	if b.MaxTokens <= 0 {
		return ContextBudget{Messages: cloneMessages(result), Summary: summary, EstimatedTokens: total}
	}

	for total > b.MaxTokens && len(result) > max(b.MinHistoryMessages, 0) {
		total -= b.EstimateTokens(result[0].Content)
		result = result[1:]
		trimmed++
	}

	if total > b.MaxTokens && summary != "" {
		summaryTokens := b.EstimateTokens(summary)
		summaryBudget := max(b.MinSummaryTokens, b.MaxTokens-total+summaryTokens, 0)
		maxChars := summaryBudget * b.charsPerToken()

		if utf8.RuneCountInString(summary) > maxChars {
			summary = string([]rune(summary)[:maxChars]) + ellipsis
			total = 0
			for _, m := range result {
				total += b.EstimateTokens(m.Content)
			}
			total += b.EstimateTokens(summary)
		}
	}

	return ContextBudget{
		Messages:        cloneMessages(result),
		Summary:         summary,
		TrimmedCount:    trimmed,
		EstimatedTokens: total,
	}
}

// Assemble returns the generator's message list: the summary as a synthetic
// assistant item followed by the recent messages verbatim.
func (c ContextBudget) Assemble(locale Locale) []domain.Message {
	out := make([]domain.Message, 0, len(c.Messages)+1)
	if c.Summary != "" {
		out = append(out, domain.Message{
			Role:    domain.RoleAssistant,
			Content: fmt.Sprintf(locale.SummaryItem, c.Summary),
		})
	}
	return append(out, c.Messages...)
}

func cloneMessages(in []domain.Message) []domain.Message {
	out := make([]domain.Message, len(in))
	copy(out, in)
	return out
}
