package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a read-through accelerator in front of the Repository. It may
// forget entries; it must never invent them.
type Cache interface {
	Has(ctx context.Context, tokenHash string) (bool, error)
	Put(ctx context.Context, tokenHash, reason string, ttl time.Duration) error
}

const keyPrefix = "revoked:"

// RedisCache keeps revoked hashes as plain keys that expire with the token.
type RedisCache struct {
	rdb redis.UniversalClient
}

func NewRedisCache(rdb redis.UniversalClient) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Has(ctx context.Context, tokenHash string) (bool, error) {
	n, err := c.rdb.Exists(ctx, keyPrefix+tokenHash).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n > 0, nil
}

func (c *RedisCache) Put(ctx context.Context, tokenHash, reason string, ttl time.Duration) error {
	if reason == "" {
		reason = "revoked"
	}
	if err := c.rdb.Set(ctx, keyPrefix+tokenHash, reason, ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
