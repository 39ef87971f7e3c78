package service

import (
	"context"
	"time"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/Rrens/chat-memory/internal/llm"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockMessageRepository mocks the MessageRepository interface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Append(ctx context.Context, message *domain.Message) (int, error) {
	args := m.Called(ctx, message)
	return args.Int(0), args.Error(1)
}

func (m *MockMessageRepository) ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

// MockSessionRepository mocks the SessionRepository interface
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int, offset int) ([]domain.ChatSession, error) {
	args := m.Called(ctx, accountID, limit, offset)
	return args.Get(0).([]domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) Touch(ctx context.Context, id uuid.UUID, title string, at time.Time) error {
	args := m.Called(ctx, id, title, at)
	return args.Error(0)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) LoadSummary(ctx context.Context, id uuid.UUID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockSessionRepository) SaveSummary(ctx context.Context, id uuid.UUID, summary string, atMessageCount int) error {
	args := m.Called(ctx, id, summary, atMessageCount)
	return args.Error(0)
}

// MockIndex mocks retrieval.Index
type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) Search(ctx context.Context, accountID uuid.UUID, query string, k int) ([]domain.RetrievalCandidate, error) {
	args := m.Called(ctx, accountID, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalCandidate), args.Error(1)
}

func (m *MockIndex) Upsert(ctx context.Context, accountID uuid.UUID, chunks []domain.KnowledgeChunk) error {
	args := m.Called(ctx, accountID, chunks)
	return args.Error(0)
}

// MockProvider mocks llm.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string              { return "mock" }
func (m *MockProvider) AvailableModels() []string { return []string{"mock-1"} }
func (m *MockProvider) DefaultModel() string      { return "mock-1" }
func (m *MockProvider) IsConfigured() bool        { return true }

func (m *MockProvider) Complete(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	args := m.Called(ctx, req, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

// MockSummarizer mocks memory.Summarizer
type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}
