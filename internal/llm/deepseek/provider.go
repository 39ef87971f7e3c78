package deepseek

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/chat-memory/internal/llm"
	"github.com/Rrens/chat-memory/internal/llm/openai"
	goopenai "github.com/sashabaranov/go-openai"
)

const defaultBaseURL = "https://api.deepseek.com/v1"

// Provider implements llm.Provider for DeepSeek over its OpenAI-compatible API
type Provider struct {
	apiKey       string
	defaultModel string
	client       *goopenai.Client
}

// NewProvider creates a new DeepSeek provider
func NewProvider(apiKey, defaultModel, baseURL string) llm.Provider {
	if defaultModel == "" {
		defaultModel = "deepseek-chat"
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")

	return &Provider{
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client:       goopenai.NewClientWithConfig(cfg),
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "deepseek"
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return []string{
		"deepseek-chat",
		"deepseek-reasoner",
	}
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

// Complete generates the next assistant message
func (p *Provider) Complete(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	if model == "" {
		model = p.defaultModel
	}

	start := time.Now()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest(req, model))
	if err != nil {
		return nil, fmt.Errorf("deepseek request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from DeepSeek")
	}

	return &llm.Response{
		Content:    llm.CleanReply(resp.Choices[0].Message.Content),
		Model:      model,
		TokensUsed: resp.Usage.TotalTokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
