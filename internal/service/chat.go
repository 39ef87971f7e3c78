package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Rrens/chat-memory/internal/config"
	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/Rrens/chat-memory/internal/llm"
	"github.com/Rrens/chat-memory/internal/memory"
	"github.com/Rrens/chat-memory/internal/retrieval"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrProviderUnavailable is returned when the requested LLM provider is unknown or not configured
var ErrProviderUnavailable = errors.New("llm provider unavailable")

const sessionTitleChars = 60

// ChatService runs one user turn end to end: persist, assemble memory,
// retrieve knowledge, generate, persist, schedule the summary refresh.
type ChatService struct {
	sessions  domain.SessionRepository
	messages  domain.MessageRepository
	index     retrieval.Index
	guardrail *retrieval.Guardrail
	memory    *memory.Manager
	budget    memory.Budget
	llmRouter *llm.Router
	memCfg    config.MemoryConfig
	retCfg    config.RetrievalConfig
	persona   string
}

// NewChatService creates a new chat service. A nil index disables retrieval.
func NewChatService(
	sessions domain.SessionRepository,
	messages domain.MessageRepository,
	index retrieval.Index,
	guardrail *retrieval.Guardrail,
	manager *memory.Manager,
	llmRouter *llm.Router,
	memCfg config.MemoryConfig,
	retCfg config.RetrievalConfig,
	persona string,
) *ChatService {
	return &ChatService{
		sessions:  sessions,
		messages:  messages,
		index:     index,
		guardrail: guardrail,
		memory:    manager,
		budget:    memory.NewBudget(memCfg),
		llmRouter: llmRouter,
		memCfg:    memCfg,
		retCfg:    retCfg,
		persona:   persona,
	}
}

// HandleTurn processes one user message in a session and returns the reply.
// Only failures that leave no reply to give are returned as errors.
func (s *ChatService) HandleTurn(ctx context.Context, accountID, sessionID uuid.UUID, req domain.ChatRequest) (*domain.ChatResponse, error) {
	requestID := uuid.New().String()
	startTime := time.Now()
	logger := log.With().
		Str("request_id", requestID).
		Str("session_id", sessionID.String()).
		Logger()

	if _, err := s.ownedSession(ctx, accountID, sessionID); err != nil {
		return nil, err
	}

	provider, err := s.llmRouter.GetProvider(req.LLMProvider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	model := req.LLMModel
	if model == "" {
		model = provider.DefaultModel()
	}

	// 1. Save user message
	userMsg := &domain.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   req.Message,
		CreatedAt: startTime,
	}
	count, err := s.messages.Append(ctx, userMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}
	scheduled := s.memory.MaybeRefresh(sessionID, count)

	// 2. Assemble conversation context
	cb, lastAssistant := s.buildContext(ctx, sessionID, userMsg)
	contextMessages := cb.Assemble(s.memory.Locale())

	// 3. Retrieve knowledge
	searchQuery := req.Message
	if s.memory.Enabled() {
		searchQuery = memory.EnrichQuery(req.Message, cb.Summary, lastAssistant)
	}
	result := s.retrieve(ctx, accountID, searchQuery, req.Message)

	// 4. Generate
	llmResp, err := provider.Complete(ctx, llm.BuildGenerationRequest(s.persona, contextMessages, result.Candidates), model)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}

	// 5. Save assistant message
	assistantMsg := &domain.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Content:   llmResp.Content,
		CreatedAt: time.Now(),
	}
	if n, err := s.messages.Append(ctx, assistantMsg); err != nil {
		logger.Error().Err(err).Msg("failed to save assistant message")
	} else {
		count = n
		if s.memory.MaybeRefresh(sessionID, count) {
			scheduled = true
		}
	}

	if err := s.sessions.Touch(ctx, sessionID, sessionTitle(req.Message), time.Now()); err != nil {
		logger.Warn().Err(err).Msg("failed to update session")
	}

	logger.Debug().
		Int("context_tokens", cb.EstimatedTokens).
		Int("trimmed", cb.TrimmedCount).
		Int("candidates_found", result.Found).
		Int("candidates_kept", len(result.Candidates)).
		Bool("summary_scheduled", scheduled).
		Msg("chat turn completed")

	return &domain.ChatResponse{
		RequestID: requestID,
		SessionID: sessionID,
		Reply:     llmResp.Content,
		Sources:   sourceRefs(result.Candidates),
		Metadata: &domain.ChatMetadata{
			LLMProvider:       provider.Name(),
			LLMModel:          model,
			ExecutionTimeMs:   time.Since(startTime).Milliseconds(),
			LLMLatencyMs:      llmResp.LatencyMs,
			TokensUsed:        llmResp.TokensUsed,
			MemoryEnabled:     s.memory.Enabled(),
			ContextTokens:     cb.EstimatedTokens,
			TrimmedMessages:   cb.TrimmedCount,
			SummaryIncluded:   cb.Summary != "",
			CandidatesFound:   result.Found,
			CandidatesKept:    len(result.Candidates),
			RerankSkipped:     result.RerankSkipped,
			SummaryScheduled:  scheduled,
			SessionMessageNum: count,
		},
	}, nil
}

// ContextSnapshot returns the context the next turn of a session would be built from
func (s *ChatService) ContextSnapshot(ctx context.Context, accountID, sessionID uuid.UUID) (*domain.ContextSnapshot, error) {
	if _, err := s.ownedSession(ctx, accountID, sessionID); err != nil {
		return nil, err
	}

	cb, _ := s.buildContext(ctx, sessionID, nil)

	return &domain.ContextSnapshot{
		SessionID:       sessionID,
		MemoryEnabled:   s.memory.Enabled(),
		Summary:         cb.Summary,
		Messages:        cb.Messages,
		TrimmedCount:    cb.TrimmedCount,
		EstimatedTokens: cb.EstimatedTokens,
	}, nil
}

// buildContext loads the recent window and, when memory is on, the rolling
// summary, then fits both into the token budget. current is the message just
// stored; it is kept even if loading the history fails.
func (s *ChatService) buildContext(ctx context.Context, sessionID uuid.UUID, current *domain.Message) (memory.ContextBudget, string) {
	history, err := s.messages.ListRecent(ctx, sessionID, s.memCfg.HistoryWindow)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("failed to load history")
		history = nil
		if current != nil {
			history = []domain.Message{*current}
		}
	}

	var summary string
	if s.memory.Enabled() {
		summary, err = s.sessions.LoadSummary(ctx, sessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("failed to load summary")
			summary = ""
		}
	}

	lastAssistant := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleAssistant {
			lastAssistant = history[i].Content
			break
		}
	}

	return s.budget.Trim(history, summary), lastAssistant
}

// retrieve searches the index and applies the guardrail. Search failures
// degrade to an answer without knowledge.
func (s *ChatService) retrieve(ctx context.Context, accountID uuid.UUID, searchQuery, rerankQuery string) retrieval.Result {
	if s.index == nil {
		return retrieval.Result{}
	}

	candidates, err := s.index.Search(ctx, accountID, searchQuery, s.retCfg.SearchK)
	if err != nil {
		log.Warn().Err(err).Str("account_id", accountID.String()).Msg("knowledge search failed, answering without snippets")
		return retrieval.Result{}
	}

	return s.guardrail.Apply(ctx, rerankQuery, candidates)
}

func (s *ChatService) ownedSession(ctx context.Context, accountID, sessionID uuid.UUID) (*domain.ChatSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.AccountID != accountID {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func sessionTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(title) > sessionTitleChars {
		title = string([]rune(title)[:sessionTitleChars]) + "..."
	}
	return title
}

func sourceRefs(candidates []domain.RetrievalCandidate) []domain.SourceRef {
	if len(candidates) == 0 {
		return nil
	}
	refs := make([]domain.SourceRef, len(candidates))
	for i, c := range candidates {
		refs[i] = domain.SourceRef{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			EntityType: c.EntityType,
			Similarity: c.Similarity,
		}
	}
	return refs
}
