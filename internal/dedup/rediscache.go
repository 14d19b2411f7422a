package dedup

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "cryptoingest:seen_hashes"

// RedisCache keeps the seen-hash set in Redis so multiple ingestion processes
// can share it. The duplicate-event log stays process-local regardless.
type RedisCache struct {
	client *redis.Client
	key    string
}

// NewRedisCache wraps a Redis client. An empty key uses the default set key.
func NewRedisCache(client *redis.Client, key string) *RedisCache {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisCache{client: client, key: key}
}

// Contains checks set membership.
func (c *RedisCache) Contains(ctx context.Context, hash string) (bool, error) {
	ok, err := c.client.SIsMember(ctx, c.key, hash).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

// Add inserts the hash; SADD returns zero when the member already existed.
func (c *RedisCache) Add(ctx context.Context, hash string) (bool, error) {
	added, err := c.client.SAdd(ctx, c.key, hash).Result()
	if err != nil {
		return false, fmt.Errorf("redis sadd: %w", err)
	}
	return added == 0, nil
}

// Clear drops the whole set.
func (c *RedisCache) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
