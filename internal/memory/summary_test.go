package memory_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/Rrens/chat-memory/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conversation(n int) []domain.Message {
	msgs := make([]domain.Message, n)
	for i := range msgs {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		msgs[i] = domain.Message{Role: role, Content: fmt.Sprintf("message %d", i+1), Sequence: i + 1}
	}
	return msgs
}

func TestShouldUpdateSummary(t *testing.T) {
	for n := 0; n <= 60; n++ {
		want := n > 0 && n%6 == 0
		assert.Equal(t, want, memory.ShouldUpdateSummary(n, 6), "n=%d", n)
	}

	assert.False(t, memory.ShouldUpdateSummary(3, 6))
	assert.False(t, memory.ShouldUpdateSummary(6, 0))
}

func TestBuildTranscript(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", memory.BuildTranscript(nil, 12, memory.English))
	})

	t.Run("labels roles", func(t *testing.T) {
		got := memory.BuildTranscript(conversation(2), 12, memory.English)
		assert.Equal(t, "User: message 1\nAssistant: message 2", got)
	})

	t.Run("hebrew labels", func(t *testing.T) {
		got := memory.BuildTranscript(conversation(2), 12, memory.Hebrew)
		assert.Equal(t, "משתמש: message 1\nעוזר: message 2", got)
	})

	t.Run("keeps only the window", func(t *testing.T) {
		msgs := conversation(30)
		got := memory.BuildTranscript(msgs, 12, memory.English)
		lines := strings.Split(got, "\n")
		require.Len(t, lines, 12)
		assert.Equal(t, "User: message 19", lines[0])
		assert.Equal(t, fmt.Sprintf("User: message %d", msgs[len(msgs)-12].Sequence), lines[0])
		assert.Equal(t, len(msgs)-11, msgs[len(msgs)-12].Sequence)
		assert.Equal(t, "Assistant: message 30", lines[11])
	})
}

func TestBuildSummaryPrompt(t *testing.T) {
	categories := []string{"User goals", "Decisions reached", "Key facts", "Open questions"}

	tests := []struct {
		name         string
		previous     string
		wantPrevious bool
	}{
		{"no previous summary", "", false},
		{"with previous summary", "User wants a pasta recipe.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := memory.BuildSummaryPrompt(tt.previous, "User: hi", memory.English)

			assert.Equal(t, tt.wantPrevious, strings.Contains(prompt, memory.English.PreviousSummary))
			if tt.wantPrevious {
				assert.True(t, strings.HasPrefix(prompt, memory.English.PreviousSummary+"\n"+tt.previous))
			}
			assert.Contains(t, prompt, memory.English.RecentMessages+"\nUser: hi")
			for _, c := range categories {
				assert.Contains(t, prompt, c)
			}
			assert.Contains(t, prompt, "at most 4 sentences")
		})
	}
}

func TestLocaleFor(t *testing.T) {
	assert.Equal(t, "he", memory.LocaleFor("he").Code)
	assert.Equal(t, "en", memory.LocaleFor("en").Code)
	assert.Equal(t, "en", memory.LocaleFor("fr").Code)
}
