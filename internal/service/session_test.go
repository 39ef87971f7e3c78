package service

import (
	"context"
	"testing"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionService_Create(t *testing.T) {
	sessions := new(MockSessionRepository)
	svc := NewSessionService(sessions, new(MockMessageRepository))
	accountID := uuid.New()

	sessions.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.ChatSession) bool {
		return s.AccountID == accountID && s.Title == "Dinner ideas" && s.ID != uuid.Nil
	})).Return(nil).Once()

	s, err := svc.Create(context.Background(), accountID, domain.SessionCreate{Title: "Dinner ideas"})
	require.NoError(t, err)
	assert.Equal(t, accountID, s.AccountID)
	sessions.AssertExpectations(t)
}

func TestSessionService_ListClampsPaging(t *testing.T) {
	tests := []struct {
		name          string
		limit, offset int
		wantLimit     int
		wantOffset    int
	}{
		{"defaults", 0, 0, 20, 0},
		{"capped", 500, 10, 100, 10},
		{"negative offset", 5, -3, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := new(MockSessionRepository)
			svc := NewSessionService(sessions, new(MockMessageRepository))
			accountID := uuid.New()

			sessions.On("ListByAccount", mock.Anything, accountID, tt.wantLimit, tt.wantOffset).
				Return([]domain.ChatSession{}, nil).Once()

			_, err := svc.List(context.Background(), accountID, tt.limit, tt.offset)
			require.NoError(t, err)
			sessions.AssertExpectations(t)
		})
	}
}

func TestSessionService_OwnershipIsEnforced(t *testing.T) {
	sessions := new(MockSessionRepository)
	messages := new(MockMessageRepository)
	svc := NewSessionService(sessions, messages)
	owner, stranger := uuid.New(), uuid.New()
	sessionID := uuid.New()

	sessions.On("Get", mock.Anything, sessionID).Return(&domain.ChatSession{ID: sessionID, AccountID: owner}, nil)

	_, err := svc.Get(context.Background(), stranger, sessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.ErrorIs(t, svc.Delete(context.Background(), stranger, sessionID), domain.ErrSessionNotFound)
	sessions.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)

	_, err = svc.Messages(context.Background(), stranger, sessionID, 10)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	messages.On("ListRecent", mock.Anything, sessionID, 100).Return([]domain.Message{{Content: "hi"}}, nil).Once()
	msgs, err := svc.Messages(context.Background(), owner, sessionID, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestKnowledgeService_Upsert(t *testing.T) {
	index := new(MockIndex)
	svc := NewKnowledgeService(index)
	accountID := uuid.New()
	chunks := []domain.KnowledgeChunk{{ID: "c1", DocumentID: "d1", EntityType: domain.EntityPost, Text: "Ravioli"}}

	require.NoError(t, svc.Upsert(context.Background(), accountID, nil))
	index.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)

	index.On("Upsert", mock.Anything, accountID, chunks).Return(nil).Once()
	require.NoError(t, svc.Upsert(context.Background(), accountID, chunks))
	index.AssertExpectations(t)
}

func TestKnowledgeService_NoIndex(t *testing.T) {
	svc := NewKnowledgeService(nil)
	chunks := []domain.KnowledgeChunk{{ID: "c1", DocumentID: "d1", EntityType: domain.EntityPost, Text: "Ravioli"}}

	err := svc.Upsert(context.Background(), uuid.New(), chunks)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}
