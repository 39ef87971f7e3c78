package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newSession(t *testing.T, store *Store, account uuid.UUID) *domain.ChatSession {
	t.Helper()
	now := time.Now().UTC()
	s := &domain.ChatSession{ID: uuid.New(), AccountID: account, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Sessions().Create(context.Background(), s))
	return s
}

func appendN(t *testing.T, store *Store, sessionID uuid.UUID, n int) {
	t.Helper()
	base := time.Now().UTC()
	for i := 1; i <= n; i++ {
		role := domain.RoleUser
		if i%2 == 0 {
			role = domain.RoleAssistant
		}
		count, err := store.Messages().Append(context.Background(), &domain.Message{
			ID:        uuid.New(),
			SessionID: sessionID,
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
		require.NoError(t, err)
		require.Equal(t, i, count)
	}
}

func TestMessageRepository_AppendAndListRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	s := newSession(t, store, uuid.New())

	appendN(t, store, s.ID, 20)

	recent, err := store.Messages().ListRecent(ctx, s.ID, 12)
	require.NoError(t, err)
	require.Len(t, recent, 12)
	assert.Equal(t, "message 9", recent[0].Content)
	assert.Equal(t, 9, recent[0].Sequence)
	assert.Equal(t, "message 20", recent[11].Content)
	assert.Equal(t, domain.RoleAssistant, recent[11].Role)

	got, err := store.Sessions().Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.MessageCount)
}

func TestMessageRepository_AppendUnknownSession(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Messages().Append(context.Background(), &domain.Message{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		Role:      domain.RoleUser,
		Content:   "hi",
		CreatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRepository_SaveSummaryIsConditional(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	sessions := store.Sessions()
	s := newSession(t, store, uuid.New())

	summary, err := sessions.LoadSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, summary)

	require.NoError(t, sessions.SaveSummary(ctx, s.ID, "summary at 12", 12))
	// a slower refresh for an older boundary finishes late
	require.NoError(t, sessions.SaveSummary(ctx, s.ID, "summary at 6", 6))

	summary, err = sessions.LoadSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "summary at 12", summary)

	require.NoError(t, sessions.SaveSummary(ctx, s.ID, "summary at 18", 18))
	got, err := sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "summary at 18", got.RollingSummary)
	assert.Equal(t, 18, got.SummaryMessageCount)
}

func TestSessionRepository_NotFound(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	sessions := store.Sessions()
	id := uuid.New()

	_, err := sessions.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = sessions.LoadSummary(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.ErrorIs(t, sessions.Delete(ctx, id), domain.ErrSessionNotFound)
	assert.ErrorIs(t, sessions.Touch(ctx, id, "t", time.Now()), domain.ErrSessionNotFound)
}

func TestSessionRepository_ListTouchDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	sessions := store.Sessions()
	account := uuid.New()

	first := newSession(t, store, account)
	second := newSession(t, store, account)
	newSession(t, store, uuid.New())

	later := time.Now().Add(time.Hour)
	require.NoError(t, sessions.Touch(ctx, first.ID, "Pasta questions", later))
	require.NoError(t, sessions.Touch(ctx, first.ID, "ignored", later.Add(time.Minute)))

	list, err := sessions.ListByAccount(ctx, account, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, "Pasta questions", list[0].Title)
	assert.Equal(t, second.ID, list[1].ID)

	appendN(t, store, first.ID, 2)
	require.NoError(t, sessions.Delete(ctx, first.ID))

	msgs, err := store.Messages().ListRecent(ctx, first.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	list, err = sessions.ListByAccount(ctx, account, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
