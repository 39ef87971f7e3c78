package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SessionService manages an account's chat sessions
type SessionService struct {
	sessions domain.SessionRepository
	messages domain.MessageRepository
}

// NewSessionService creates a new session service
func NewSessionService(sessions domain.SessionRepository, messages domain.MessageRepository) *SessionService {
	return &SessionService{sessions: sessions, messages: messages}
}

// Create starts a new empty session
func (s *SessionService) Create(ctx context.Context, accountID uuid.UUID, req domain.SessionCreate) (*domain.ChatSession, error) {
	now := time.Now().UTC()
	session := &domain.ChatSession{
		ID:        uuid.New(),
		AccountID: accountID,
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// List returns the account's sessions, most recently active first
func (s *SessionService) List(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.ChatSession, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.sessions.ListByAccount(ctx, accountID, limit, offset)
}

// Get returns a session owned by the account
func (s *SessionService) Get(ctx context.Context, accountID, sessionID uuid.UUID) (*domain.ChatSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.AccountID != accountID {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Delete removes a session and its messages
func (s *SessionService) Delete(ctx context.Context, accountID, sessionID uuid.UUID) error {
	if _, err := s.Get(ctx, accountID, sessionID); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, sessionID)
}

// Messages returns the latest messages of a session in chronological order
func (s *SessionService) Messages(ctx context.Context, accountID, sessionID uuid.UUID, limit int) ([]domain.Message, error) {
	if _, err := s.Get(ctx, accountID, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	return s.messages.ListRecent(ctx, sessionID, limit)
}
