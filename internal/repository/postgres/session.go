package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, account_id, title, message_count, rolling_summary, summary_message_count, created_at, updated_at`

func scanSession(row pgx.Row) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := row.Scan(
		&s.ID,
		&s.AccountID,
		&s.Title,
		&s.MessageCount,
		&s.RollingSummary,
		&s.SummaryMessageCount,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	query := `
		INSERT INTO chat_sessions (id, account_id, title, message_count, rolling_summary, summary_message_count, created_at, updated_at)
		VALUES ($1, $2, $3, 0, '', 0, $4, $5)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		session.ID,
		session.AccountID,
		session.Title,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id = $1`

	s, err := scanSession(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int, offset int) ([]domain.ChatSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM chat_sessions
		WHERE account_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pool.Query(ctx, query, accountID, limit, offset)
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

// Touch bumps updated_at and sets the title if the session has none yet
func (r *SessionRepository) Touch(ctx context.Context, id uuid.UUID, title string, at time.Time) error {
	query := `
		UPDATE chat_sessions
		SET updated_at = $3,
		    title = CASE WHEN title = '' THEN $2 ELSE title END
		WHERE id = $1
	`
	tag, err := r.db.Pool.Exec(ctx, query, id, title, at)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM chat_sessions WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) LoadSummary(ctx context.Context, id uuid.UUID) (string, error) {
	query := `SELECT rolling_summary FROM chat_sessions WHERE id = $1`

	var summary string
	if err := r.db.Pool.QueryRow(ctx, query, id).Scan(&summary); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to load summary: %w", err)
	}
	return summary, nil
}

// SaveSummary is a no-op when a summary for a later message count is already stored
func (r *SessionRepository) SaveSummary(ctx context.Context, id uuid.UUID, summary string, atMessageCount int) error {
	query := `
		UPDATE chat_sessions
		SET rolling_summary = $2, summary_message_count = $3
		WHERE id = $1 AND summary_message_count <= $3
	`
	if _, err := r.db.Pool.Exec(ctx, query, id, summary, atMessageCount); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}
