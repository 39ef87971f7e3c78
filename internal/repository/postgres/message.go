package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MessageRepository implements domain.MessageRepository
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts the message and bumps the session counter in one transaction
func (r *MessageRepository) Append(ctx context.Context, message *domain.Message) (int, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var count int
	err = tx.QueryRow(ctx, `
		UPDATE chat_sessions
		SET message_count = message_count + 1, updated_at = $2
		WHERE id = $1
		RETURNING message_count
	`, message.SessionID, message.CreatedAt).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrSessionNotFound
		}
		return 0, fmt.Errorf("failed to bump message count: %w", err)
	}

	message.Sequence = count

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, sequence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		message.ID,
		message.SessionID,
		message.Role,
		message.Content,
		message.Sequence,
		message.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit message: %w", err)
	}

	return count, nil
}

// ListRecent retrieves the latest messages of a session, oldest first
func (r *MessageRepository) ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Message, error) {
	query := `
		SELECT id, session_id, role, content, sequence, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY sequence DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var roleStr string

		if err := rows.Scan(
			&m.ID,
			&m.SessionID,
			&roleStr,
			&m.Content,
			&m.Sequence,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = domain.MessageRole(roleStr)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	// Ordered DESC to get the latest N, reverse to chronological
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
