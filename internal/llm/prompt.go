package llm

import (
	"fmt"
	"strings"

	"github.com/Rrens/chat-memory/internal/domain"
)

const defaultPersona = "You are a helpful assistant for a creator's audience."

// Generation defaults for chat replies
const (
	ReplyTemperature = 0.7
	ReplyMaxTokens   = 1024
)

// BuildSystemPrompt renders the persona and the knowledge snippets the reply
// should be grounded on
func BuildSystemPrompt(persona string, snippets []domain.RetrievalCandidate) string {
	if strings.TrimSpace(persona) == "" {
		persona = defaultPersona
	}

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString(`

Rules:
1. Answer using the knowledge below when it is relevant
2. Do not invent facts, codes or links that are not in the knowledge or the conversation
3. If the knowledge does not cover the question, say so briefly
4. Reply in the language of the user's last message`)

	if len(snippets) == 0 {
		sb.WriteString("\n\nKnowledge: none found for this message.")
		return sb.String()
	}

	sb.WriteString("\n\nKnowledge:")
	for i, s := range snippets {
		fmt.Fprintf(&sb, "\n[%d] (%s, %s) %s", i+1, s.EntityType, s.DocumentID, strings.TrimSpace(s.Text))
	}
	return sb.String()
}

// BuildGenerationRequest shapes the assembled conversation context and the
// retrieved snippets into a chat request. The context already ends with the
// user's current message.
func BuildGenerationRequest(persona string, contextMessages []domain.Message, snippets []domain.RetrievalCandidate) Request {
	messages := make([]Message, 0, len(contextMessages))
	for _, m := range contextMessages {
		role := RoleAssistant
		if m.Role == domain.RoleUser {
			role = RoleUser
		}
		messages = append(messages, Message{Role: role, Content: m.Content})
	}

	return Request{
		System:      BuildSystemPrompt(persona, snippets),
		Messages:    messages,
		Temperature: ReplyTemperature,
		MaxTokens:   ReplyMaxTokens,
	}
}

// CleanReply trims whitespace and unwraps a reply the model fenced in a code block
func CleanReply(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") && strings.HasSuffix(content, "```") {
		if inner := extractFromCodeBlock(content, "```"); inner != "" {
			return inner
		}
	}
	return content
}

func extractFromCodeBlock(content, marker string) string {
	startIdx := strings.Index(content, marker)
	if startIdx == -1 {
		return ""
	}

	contentStart := startIdx + len(marker)
	// Skip language tag and newline after marker
	if nl := strings.IndexByte(content[contentStart:], '\n'); nl != -1 {
		contentStart += nl + 1
	}

	endIdx := strings.Index(content[contentStart:], marker)
	if endIdx == -1 {
		return ""
	}

	return strings.TrimSpace(content[contentStart : contentStart+endIdx])
}

// NormalizeTurns prepares a request for providers that require strictly
// alternating turns starting with the user: leading assistant messages move
// into the system prompt and consecutive same-role messages are merged.
func NormalizeTurns(req Request) (string, []Message) {
	system := req.System
	msgs := req.Messages

	for len(msgs) > 0 && msgs[0].Role != RoleUser {
		if system != "" {
			system += "\n\n"
		}
		system += msgs[0].Content
		msgs = msgs[1:]
	}

	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return system, out
}
