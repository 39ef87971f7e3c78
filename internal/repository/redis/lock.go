package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const lockPrefix = "lock:"

// Deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a SessionLocker shared by every server instance
type Locker struct {
	client *Client
}

// NewLocker creates a Redis-backed locker
func NewLocker(client *Client) *Locker {
	return &Locker{client: client}
}

// TryLock sets the key with NX and a TTL. The lock expires on its own if the
// holder dies, so ttl must cover the longest expected hold.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	fullKey := lockPrefix + key
	token := uuid.NewString()

	ok, err := l.client.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client.rdb, []string{fullKey}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", fullKey).Msg("failed to release lock")
		}
	}

	return unlock, true, nil
}
