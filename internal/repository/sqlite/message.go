package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
)

// MessageRepository implements domain.MessageRepository on SQLite
type MessageRepository struct {
	db *sql.DB
}

func (r *MessageRepository) Append(ctx context.Context, message *domain.Message) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `
		UPDATE chat_sessions
		SET message_count = message_count + 1, updated_at = ?
		WHERE id = ?
		RETURNING message_count
	`, message.CreatedAt.UnixMilli(), message.SessionID.String()).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrSessionNotFound
		}
		return 0, fmt.Errorf("failed to bump message count: %w", err)
	}

	message.Sequence = count

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, sequence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		message.ID.String(),
		message.SessionID.String(),
		string(message.Role),
		message.Content,
		message.Sequence,
		message.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit message: %w", err)
	}
	return count, nil
}

func (r *MessageRepository) ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, sequence, created_at
		FROM (
			SELECT id, session_id, role, content, sequence, created_at
			FROM chat_messages
			WHERE session_id = ?
			ORDER BY sequence DESC
			LIMIT ?
		)
		ORDER BY sequence ASC
	`, sessionID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var role string
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.Sequence, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = domain.MessageRole(role)
		m.CreatedAt = time.UnixMilli(createdAt).UTC()
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
