package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents one turn in a session. Messages are append-only.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	SessionID uuid.UUID   `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Sequence  int         `json:"sequence"`
	CreatedAt time.Time   `json:"created_at"`
}

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	// Append stores the message, assigns its sequence and returns the
	// session's total message count after the insert.
	Append(ctx context.Context, message *Message) (int, error)

	// ListRecent returns the latest limit messages in chronological order.
	ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error)
}
