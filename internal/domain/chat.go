package domain

import "github.com/google/uuid"

// ChatRequest represents one user turn
type ChatRequest struct {
	Message     string `json:"message" validate:"required,max=4000"`
	LLMProvider string `json:"llm_provider" validate:"omitempty,oneof=openai anthropic ollama deepseek gemini"`
	LLMModel    string `json:"llm_model,omitempty"`
}

// ChatResponse represents the assistant reply for a turn
type ChatResponse struct {
	RequestID string        `json:"request_id"`
	SessionID uuid.UUID     `json:"session_id"`
	Reply     string        `json:"reply"`
	Sources   []SourceRef   `json:"sources,omitempty"`
	Metadata  *ChatMetadata `json:"metadata"`
}

// SourceRef identifies a knowledge snippet the reply was grounded on
type SourceRef struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	EntityType EntityType `json:"entity_type"`
	Similarity float64    `json:"similarity"`
}

// ChatMetadata contains per-turn diagnostics
type ChatMetadata struct {
	LLMProvider       string `json:"llm_provider"`
	LLMModel          string `json:"llm_model"`
	ExecutionTimeMs   int64  `json:"execution_time_ms"`
	LLMLatencyMs      int64  `json:"llm_latency_ms"`
	TokensUsed        int    `json:"tokens_used"`
	MemoryEnabled     bool   `json:"memory_enabled"`
	ContextTokens     int    `json:"context_tokens"`
	TrimmedMessages   int    `json:"trimmed_messages"`
	SummaryIncluded   bool   `json:"summary_included"`
	CandidatesFound   int    `json:"candidates_found"`
	CandidatesKept    int    `json:"candidates_kept"`
	RerankSkipped     bool   `json:"rerank_skipped"`
	SummaryScheduled  bool   `json:"summary_scheduled"`
	SessionMessageNum int    `json:"session_message_count"`
}

// ContextSnapshot is the assembled generator context for a session, for inspection
type ContextSnapshot struct {
	SessionID       uuid.UUID `json:"session_id"`
	MemoryEnabled   bool      `json:"memory_enabled"`
	Summary         string    `json:"summary,omitempty"`
	Messages        []Message `json:"messages"`
	TrimmedCount    int       `json:"trimmed_count"`
	EstimatedTokens int       `json:"estimated_tokens"`
}
