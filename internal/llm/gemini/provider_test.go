package gemini

import (
	"context"
	"testing"

	"github.com/Rrens/chat-memory/internal/config"
	"github.com/Rrens/chat-memory/internal/llm"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitConversation(t *testing.T) {
	system, history, last, err := SplitConversation(llm.Request{
		System: "persona",
		Messages: []llm.Message{
			{Role: llm.RoleAssistant, Content: "[summary]"},
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hello"},
			{Role: llm.RoleUser, Content: "recipe?"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "persona\n\n[summary]", system)
	assert.Equal(t, "recipe?", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, genai.Text("hello"), history[1].Parts[0])
}

func TestSplitConversation_RequiresUserTurn(t *testing.T) {
	_, _, _, err := SplitConversation(llm.Request{})
	assert.Error(t, err)
}

func TestProvider_NotConfigured(t *testing.T) {
	p := NewProvider(config.GeminiConfig{})
	assert.False(t, p.IsConfigured())
	assert.Equal(t, "gemini-2.5-flash", p.DefaultModel())

	_, err := p.Complete(context.Background(), llm.Request{}, "")
	assert.Error(t, err)
}
