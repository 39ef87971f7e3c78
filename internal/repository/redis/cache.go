package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/chat-memory/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const searchCachePrefix = "search:"

// SearchCache keeps similarity search results for a short TTL
type SearchCache struct {
	client *Client
	ttl    time.Duration
}

// NewSearchCache creates a new search cache
func NewSearchCache(client *Client, ttl time.Duration) *SearchCache {
	return &SearchCache{client: client, ttl: ttl}
}

// GetSearch returns nil without error on a cache miss
func (c *SearchCache) GetSearch(ctx context.Context, key string) ([]domain.RetrievalCandidate, error) {
	data, err := c.client.rdb.Get(ctx, searchCachePrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached search: %w", err)
	}

	var candidates []domain.RetrievalCandidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached search: %w", err)
	}

	return candidates, nil
}

// SetSearch caches the results of one search
func (c *SearchCache) SetSearch(ctx context.Context, key string, candidates []domain.RetrievalCandidate) error {
	if candidates == nil {
		candidates = []domain.RetrievalCandidate{}
	}

	data, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("failed to marshal search results: %w", err)
	}

	return c.client.rdb.Set(ctx, searchCachePrefix+key, data, c.ttl).Err()
}

// InvalidateAccount drops every cached search of one account
func (c *SearchCache) InvalidateAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := c.client.scanDelete(ctx, searchCachePrefix+accountID.String()+":*")
	return err
}

// FlushAll removes all cached searches
func (c *SearchCache) FlushAll(ctx context.Context) (int64, error) {
	return c.client.scanDelete(ctx, searchCachePrefix+"*")
}
