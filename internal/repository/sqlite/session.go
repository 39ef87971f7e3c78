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

// SessionRepository implements domain.SessionRepository on SQLite
type SessionRepository struct {
	db *sql.DB
}

const sessionColumns = `id, account_id, title, message_count, rolling_summary, summary_message_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.ChatSession, error) {
	var s domain.ChatSession
	var createdAt, updatedAt int64
	err := row.Scan(
		&s.ID,
		&s.AccountID,
		&s.Title,
		&s.MessageCount,
		&s.RollingSummary,
		&s.SummaryMessageCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.CreatedAt = time.UnixMilli(createdAt).UTC()
	s.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &s, nil
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, account_id, title, message_count, rolling_summary, summary_message_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, '', 0, ?, ?)
	`,
		session.ID.String(),
		session.AccountID.String(),
		session.Title,
		session.CreatedAt.UnixMilli(),
		session.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id = ?`, id.String())

	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int, offset int) ([]domain.ChatSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM chat_sessions
		WHERE account_id = ?
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
	`, accountID.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.ChatSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) Touch(ctx context.Context, id uuid.UUID, title string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE chat_sessions
		SET updated_at = ?,
		    title = CASE WHEN title = '' THEN ? ELSE title END
		WHERE id = ?
	`, at.UnixMilli(), title, id.String())
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return requireRow(res)
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return requireRow(res)
}

func (r *SessionRepository) LoadSummary(ctx context.Context, id uuid.UUID) (string, error) {
	var summary string
	err := r.db.QueryRowContext(ctx, `SELECT rolling_summary FROM chat_sessions WHERE id = ?`, id.String()).Scan(&summary)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to load summary: %w", err)
	}
	return summary, nil
}

func (r *SessionRepository) SaveSummary(ctx context.Context, id uuid.UUID, summary string, atMessageCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE chat_sessions
		SET rolling_summary = ?, summary_message_count = ?
		WHERE id = ? AND summary_message_count <= ?
	`, summary, atMessageCount, id.String(), atMessageCount)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}
