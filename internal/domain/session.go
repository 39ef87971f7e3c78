package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session id does not resolve to a stored session
var ErrSessionNotFound = errors.New("session not found")

// ChatSession represents one ongoing dialogue for an account
type ChatSession struct {
	ID                  uuid.UUID `json:"id"`
	AccountID           uuid.UUID `json:"account_id"`
	Title               string    `json:"title"`
	MessageCount        int       `json:"message_count"`
	RollingSummary      string    `json:"rolling_summary,omitempty"`
	SummaryMessageCount int       `json:"summary_message_count"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SessionCreate represents session creation data
type SessionCreate struct {
	Title string `json:"title" validate:"max=255"`
}

// SessionRepository defines the interface for session storage.
//
// SaveSummary must be a single conditional write: it replaces the summary
// only when atMessageCount is not older than the stored summary's count.
type SessionRepository interface {
	Create(ctx context.Context, session *ChatSession) error
	Get(ctx context.Context, id uuid.UUID) (*ChatSession, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int, offset int) ([]ChatSession, error)
	Touch(ctx context.Context, id uuid.UUID, title string, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	LoadSummary(ctx context.Context, id uuid.UUID) (string, error)
	SaveSummary(ctx context.Context, id uuid.UUID, summary string, atMessageCount int) error
}
