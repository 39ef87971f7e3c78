package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Index is a similarity search over an account's knowledge. Results come
// back in descending similarity order.
type Index interface {
	Search(ctx context.Context, accountID uuid.UUID, query string, k int) ([]domain.RetrievalCandidate, error)
	Upsert(ctx context.Context, accountID uuid.UUID, chunks []domain.KnowledgeChunk) error
}

// Reranker reorders candidates by relevance to query and keeps finalK
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.RetrievalCandidate, finalK int) ([]domain.RetrievalCandidate, error)
}

// SearchCache stores search results by key
type SearchCache interface {
	GetSearch(ctx context.Context, key string) ([]domain.RetrievalCandidate, error)
	SetSearch(ctx context.Context, key string, candidates []domain.RetrievalCandidate) error
	InvalidateAccount(ctx context.Context, accountID uuid.UUID) error
}

// CachedIndex serves repeated searches from a cache
type CachedIndex struct {
	next  Index
	cache SearchCache
}

// NewCachedIndex wraps next with cache
func NewCachedIndex(next Index, cache SearchCache) *CachedIndex {
	return &CachedIndex{next: next, cache: cache}
}

// Search returns cached results when present, otherwise queries the index
// and stores the results. Cache errors never fail a search.
func (c *CachedIndex) Search(ctx context.Context, accountID uuid.UUID, query string, k int) ([]domain.RetrievalCandidate, error) {
	key := SearchKey(accountID, query, k)

	cached, err := c.cache.GetSearch(ctx, key)
	if err == nil && cached != nil {
		return cached, nil
	}

	results, err := c.next.Search(ctx, accountID, query, k)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetSearch(ctx, key, results); err != nil {
		log.Warn().Err(err).Str("account_id", accountID.String()).Msg("failed to cache search results")
	}
	return results, nil
}

// Upsert writes through to the index and drops the account's cached searches
func (c *CachedIndex) Upsert(ctx context.Context, accountID uuid.UUID, chunks []domain.KnowledgeChunk) error {
	if err := c.next.Upsert(ctx, accountID, chunks); err != nil {
		return err
	}
	if err := c.cache.InvalidateAccount(ctx, accountID); err != nil {
		log.Warn().Err(err).Str("account_id", accountID.String()).Msg("failed to invalidate search cache")
	}
	return nil
}

// SearchKey builds the cache key for one search
func SearchKey(accountID uuid.UUID, query string, k int) string {
	sum := sha256.Sum256([]byte(strconv.Itoa(k) + "\x00" + query))
	return fmt.Sprintf("%s:%s", accountID, hex.EncodeToString(sum[:16]))
}
