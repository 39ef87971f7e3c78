package llm

import (
	"context"
	"fmt"
)

// PromptClient sends a single user prompt to a fixed provider and model.
// It backs background work such as summary refresh and rerank scoring.
type PromptClient struct {
	provider    Provider
	model       string
	temperature float64
	maxTokens   int
}

// NewPromptClient creates a prompt client. An empty model uses the provider default.
func NewPromptClient(provider Provider, model string, temperature float64, maxTokens int) *PromptClient {
	if model == "" {
		model = provider.DefaultModel()
	}
	return &PromptClient{
		provider:    provider,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Generate returns the model's reply to prompt
func (c *PromptClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.provider.Complete(ctx, Request{
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}, c.model)
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", c.provider.Name(), err)
	}
	return resp.Content, nil
}
