package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/Rrens/chat-memory/internal/retrieval"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrIndexUnavailable is returned when no similarity index is configured
var ErrIndexUnavailable = errors.New("similarity index unavailable")

// KnowledgeService feeds an account's content into the similarity index
type KnowledgeService struct {
	index retrieval.Index
}

// NewKnowledgeService creates a new knowledge service. A nil index rejects every upsert.
func NewKnowledgeService(index retrieval.Index) *KnowledgeService {
	return &KnowledgeService{index: index}
}

// Upsert adds or replaces chunks by id
func (s *KnowledgeService) Upsert(ctx context.Context, accountID uuid.UUID, chunks []domain.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if s.index == nil {
		return ErrIndexUnavailable
	}
	if err := s.index.Upsert(ctx, accountID, chunks); err != nil {
		return fmt.Errorf("failed to index knowledge: %w", err)
	}

	log.Info().
		Str("account_id", accountID.String()).
		Int("chunks", len(chunks)).
		Msg("knowledge indexed")
	return nil
}
