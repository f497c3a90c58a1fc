package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryCache is a process-local ReportCache for single-instance
// deployments and the CLI. Values are stored JSON encoded so callers see
// the same copy semantics as with Redis.
type MemoryCache struct {
	client *ristretto.Cache
	ttl    time.Duration
}

// NewMemoryCache creates a cache bounded to maxBytes of encoded reports.
func NewMemoryCache(maxBytes int64, ttl time.Duration) (*MemoryCache, error) {
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &MemoryCache{client: client, ttl: ttl}, nil
}

// Get implements ReportCache.
func (c *MemoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	v, ok := c.client.Get(key)
	if !ok {
		return false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set implements ReportCache. Admission is asynchronous; Wait blocks until
// pending writes are visible.
func (c *MemoryCache) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	c.client.SetWithTTL(key, data, int64(len(data)), c.ttl)
	return nil
}

// Wait blocks until buffered writes have been applied.
func (c *MemoryCache) Wait() { c.client.Wait() }

// Invalidate implements ReportCache.
func (c *MemoryCache) Invalidate(context.Context) error {
	c.client.Clear()
	return nil
}

// Close releases the cache's background goroutines.
func (c *MemoryCache) Close() { c.client.Close() }
