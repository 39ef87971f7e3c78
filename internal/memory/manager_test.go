package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/chat-memory/internal/config"
	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	summary  string
	saveErr  error
	saves    int
	savedAt  int
	messages []domain.Message
}

func (f *fakeStore) LoadSummary(_ context.Context, _ uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary, nil
}

func (f *fakeStore) SaveSummary(_ context.Context, _ uuid.UUID, summary string, atMessageCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.summary = summary
	f.savedAt = atMessageCount
	return nil
}

func (f *fakeStore) ListRecent(_ context.Context, _ uuid.UUID, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeStore) current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary
}

type mockSummarizer struct {
	mock.Mock
}

func (m *mockSummarizer) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func testConfig() config.MemoryConfig {
	cfg := config.DefaultMemoryConfig()
	cfg.Enabled = true
	return cfg
}

func newTestManager(cfg config.MemoryConfig, store *fakeStore, s Summarizer) (*Manager, *[]time.Duration) {
	m := NewManager(cfg, store, store, s, NewLocalLocker())
	var delays []time.Duration
	var mu sync.Mutex
	m.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return ctx.Err()
	}
	return m, &delays
}

func sampleMessages(n int) []domain.Message {
	msgs := make([]domain.Message, n)
	for i := range msgs {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		msgs[i] = domain.Message{Role: role, Content: "turn", Sequence: i + 1}
	}
	return msgs
}

func TestManager_RefreshSuccess(t *testing.T) {
	store := &fakeStore{summary: "old facts", messages: sampleMessages(6)}
	summarizer := new(mockSummarizer)
	summarizer.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Previous conversation summary:\nold facts") && strings.Contains(p, "User: turn")
	})).Return("  new facts \n", nil).Once()

	m, delays := newTestManager(testConfig(), store, summarizer)

	err := m.Refresh(context.Background(), uuid.New(), 6)
	require.NoError(t, err)

	assert.Equal(t, "new facts", store.current())
	assert.Equal(t, 6, store.savedAt)
	assert.Empty(t, *delays)
	summarizer.AssertExpectations(t)
}

func TestManager_RefreshRetriesThenGivesUp(t *testing.T) {
	store := &fakeStore{summary: "prior summary", messages: sampleMessages(12)}
	summarizer := new(mockSummarizer)
	summarizer.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("model unavailable"))

	m, delays := newTestManager(testConfig(), store, summarizer)

	err := m.Refresh(context.Background(), uuid.New(), 12)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 attempts")

	summarizer.AssertNumberOfCalls(t, "Generate", 3)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond}, *delays)
	assert.Equal(t, "prior summary", store.current())
}

func TestManager_RefreshRetriesOnSaveFailure(t *testing.T) {
	store := &fakeStore{summary: "prior summary", saveErr: errors.New("db down"), messages: sampleMessages(6)}
	summarizer := new(mockSummarizer)
	summarizer.On("Generate", mock.Anything, mock.Anything).Return("fresh", nil)

	m, delays := newTestManager(testConfig(), store, summarizer)

	err := m.Refresh(context.Background(), uuid.New(), 6)
	require.Error(t, err)

	assert.Equal(t, 3, store.saves)
	assert.Len(t, *delays, 2)
	assert.Equal(t, "prior summary", store.current())
}

func TestManager_RefreshRecoversOnRetry(t *testing.T) {
	store := &fakeStore{messages: sampleMessages(6)}
	summarizer := new(mockSummarizer)
	summarizer.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("timeout")).Once()
	summarizer.On("Generate", mock.Anything, mock.Anything).Return("   ", nil).Once()
	summarizer.On("Generate", mock.Anything, mock.Anything).Return("recovered", nil).Once()

	m, delays := newTestManager(testConfig(), store, summarizer)

	require.NoError(t, m.Refresh(context.Background(), uuid.New(), 6))
	assert.Equal(t, "recovered", store.current())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond}, *delays)
}

func TestManager_RefreshStopsOnTimeout(t *testing.T) {
	store := &fakeStore{summary: "kept", messages: sampleMessages(6)}
	summarizer := new(mockSummarizer)
	summarizer.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("slow"))

	m, _ := newTestManager(testConfig(), store, summarizer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Refresh(ctx, uuid.New(), 6)
	require.Error(t, err)
	summarizer.AssertNumberOfCalls(t, "Generate", 1)
	assert.Equal(t, "kept", store.current())
}

func TestManager_RefreshSkipsWhenLocked(t *testing.T) {
	store := &fakeStore{messages: sampleMessages(6)}
	summarizer := new(mockSummarizer)

	m, _ := newTestManager(testConfig(), store, summarizer)
	sessionID := uuid.New()

	unlock, ok, err := m.locker.TryLock(context.Background(), lockKey(sessionID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer unlock()

	require.NoError(t, m.Refresh(context.Background(), sessionID, 6))
	summarizer.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestManager_MaybeRefresh(t *testing.T) {
	t.Run("off the interval", func(t *testing.T) {
		store := &fakeStore{messages: sampleMessages(5)}
		summarizer := new(mockSummarizer)
		m, _ := newTestManager(testConfig(), store, summarizer)

		for _, n := range []int{0, 1, 3, 5, 7, 13} {
			assert.False(t, m.MaybeRefresh(uuid.New(), n), "n=%d", n)
		}
		summarizer.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.Enabled = false
		store := &fakeStore{messages: sampleMessages(6)}
		summarizer := new(mockSummarizer)
		m, _ := newTestManager(cfg, store, summarizer)

		assert.False(t, m.MaybeRefresh(uuid.New(), 6))
		assert.False(t, m.Enabled())
	})

	t.Run("runs in background", func(t *testing.T) {
		store := &fakeStore{messages: sampleMessages(12)}
		release := make(chan struct{})
		summarizer := new(mockSummarizer)
		summarizer.On("Generate", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { <-release }).
			Return("background summary", nil).Once()

		m, _ := newTestManager(testConfig(), store, summarizer)

		assert.True(t, m.MaybeRefresh(uuid.New(), 12))
		assert.Equal(t, "", store.current())

		close(release)
		require.NoError(t, m.Wait(context.Background()))
		assert.Equal(t, "background summary", store.current())
	})

	t.Run("redundant trigger is dropped", func(t *testing.T) {
		store := &fakeStore{messages: sampleMessages(12)}
		release := make(chan struct{})
		started := make(chan struct{})
		summarizer := new(mockSummarizer)
		summarizer.On("Generate", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				close(started)
				<-release
			}).
			Return("only once", nil).Once()

		m, _ := newTestManager(testConfig(), store, summarizer)
		sessionID := uuid.New()

		require.True(t, m.MaybeRefresh(sessionID, 12))
		<-started
		require.True(t, m.MaybeRefresh(sessionID, 12))

		close(release)
		require.NoError(t, m.Wait(context.Background()))

		summarizer.AssertNumberOfCalls(t, "Generate", 1)
		assert.Equal(t, "only once", store.current())
	})
}

func TestManager_WaitHonorsContext(t *testing.T) {
	store := &fakeStore{messages: sampleMessages(6)}
	release := make(chan struct{})
	defer close(release)

	summarizer := new(mockSummarizer)
	summarizer.On("Generate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return("late", nil)

	m, _ := newTestManager(testConfig(), store, summarizer)
	require.True(t, m.MaybeRefresh(uuid.New(), 6))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Wait(ctx), context.DeadlineExceeded)
}
