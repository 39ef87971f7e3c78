package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/chat-memory/internal/config"
	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrEmptySummary is returned when the summarizer produces only whitespace
var ErrEmptySummary = errors.New("summarizer returned an empty summary")

// SummaryStore is the slice of session persistence the manager needs
type SummaryStore interface {
	LoadSummary(ctx context.Context, sessionID uuid.UUID) (string, error)
	SaveSummary(ctx context.Context, sessionID uuid.UUID, summary string, atMessageCount int) error
}

// MessageLoader loads the recent history of a session
type MessageLoader interface {
	ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Message, error)
}

// Summarizer turns a summary prompt into a new summary
type Summarizer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Manager keeps each session's rolling summary current. Refreshes run in the
// background and at most one runs per session at a time.
type Manager struct {
	cfg        config.MemoryConfig
	locale     Locale
	sessions   SummaryStore
	messages   MessageLoader
	summarizer Summarizer
	locker     SessionLocker
	logger     zerolog.Logger

	// sleep waits between attempts; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error

	wg sync.WaitGroup
}

// NewManager creates a summary manager. A nil locker falls back to an
// in-process one.
func NewManager(
	cfg config.MemoryConfig,
	sessions SummaryStore,
	messages MessageLoader,
	summarizer Summarizer,
	locker SessionLocker,
) *Manager {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Manager{
		cfg:        cfg,
		locale:     LocaleFor(cfg.Locale),
		sessions:   sessions,
		messages:   messages,
		summarizer: summarizer,
		locker:     locker,
		logger:     log.Logger.With().Str("component", "summary").Logger(),
		sleep:      sleepContext,
	}
}

// Enabled reports whether the memory subsystem is switched on
func (m *Manager) Enabled() bool {
	return m.cfg.Enabled
}

// Locale returns the configured prompt locale
func (m *Manager) Locale() Locale {
	return m.locale
}

// MaybeRefresh starts a detached summary refresh when messageCount lands on
// the update interval. It returns immediately and reports whether a refresh
// was started. Failures are only logged.
func (m *Manager) MaybeRefresh(sessionID uuid.UUID, messageCount int) bool {
	if !m.cfg.Enabled || !ShouldUpdateSummary(messageCount, m.cfg.SummaryUpdateInterval) {
		return false
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx := context.Background()
		if m.cfg.SummaryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.cfg.SummaryTimeout)
			defer cancel()
		}

		if err := m.Refresh(ctx, sessionID, messageCount); err != nil {
			m.logger.Error().
				Err(err).
				Str("session_id", sessionID.String()).
				Int("message_count", messageCount).
				Msg("summary refresh failed")
		}
	}()
	return true
}

// Refresh regenerates the session summary synchronously. A refresh already
// in flight for the same session makes this call a no-op.
func (m *Manager) Refresh(ctx context.Context, sessionID uuid.UUID, messageCount int) error {
	unlock, ok, err := m.locker.TryLock(ctx, lockKey(sessionID), m.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire summary lock: %w", err)
	}
	if !ok {
		m.logger.Debug().
			Str("session_id", sessionID.String()).
			Int("message_count", messageCount).
			Msg("summary refresh already running, skipping")
		return nil
	}
	defer unlock()

	start := time.Now()

	previous, err := m.sessions.LoadSummary(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load summary: %w", err)
	}

	history, err := m.messages.ListRecent(ctx, sessionID, m.cfg.HistoryWindow)
	if err != nil {
		return fmt.Errorf("failed to load recent messages: %w", err)
	}

	transcript := BuildTranscript(history, m.cfg.HistoryWindow, m.locale)
	prompt := BuildSummaryPrompt(previous, transcript, m.locale)

	var lastErr error
	for attempt := 0; attempt <= m.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := m.cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
			if err := m.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
			m.logger.Info().
				Str("session_id", sessionID.String()).
				Int("attempt", attempt).
				Int("max_retries", m.cfg.RetryAttempts).
				Msg("retrying summary refresh")
		}

		summary, err := m.attempt(ctx, sessionID, prompt, messageCount)
		if err == nil {
			m.logger.Info().
				Str("session_id", sessionID.String()).
				Int("attempt", attempt).
				Dur("duration", time.Since(start)).
				Int("summary_length", len(summary)).
				Msg("summary updated")
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return fmt.Errorf("summary refresh gave up after %d attempts in %s: %w",
		m.cfg.RetryAttempts+1, time.Since(start).Round(time.Millisecond), lastErr)
}

func (m *Manager) attempt(ctx context.Context, sessionID uuid.UUID, prompt string, messageCount int) (string, error) {
	out, err := m.summarizer.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	summary := strings.TrimSpace(out)
	if summary == "" {
		return "", ErrEmptySummary
	}

	if err := m.sessions.SaveSummary(ctx, sessionID, summary, messageCount); err != nil {
		return "", fmt.Errorf("failed to save summary: %w", err)
	}
	return summary, nil
}

// Wait blocks until every started refresh has finished or ctx is done
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func lockKey(sessionID uuid.UUID) string {
	return "summary:" + sessionID.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
