package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "sgi:report"

// RedisCache keeps reports in Redis under a generation number.
// Invalidate bumps the generation, so stale entries are never read again
// and expire on their own TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a cache whose entries live for ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: defaultPrefix, ttl: ttl}
}

func (c *RedisCache) genKey() string { return c.prefix + ":gen" }

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache generation: %w", err)
	}
	return gen, nil
}

func (c *RedisCache) entryKey(gen int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, gen, key)
}

// Get implements ReportCache.
func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return false, err
	}
	data, err := c.client.Get(ctx, c.entryKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set implements ReportCache.
func (c *RedisCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	gen, err := c.generation(ctx)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.entryKey(gen, key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Invalidate implements ReportCache.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.genKey()).Err(); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	return nil
}
