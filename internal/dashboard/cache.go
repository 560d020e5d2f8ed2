package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	versionKey  = "dashboard:version"
	lowStockKey = "dashboard:low_stock"
)

// Cache stores summaries under a versioned key. Bumping the version orphans
// every cached summary at once; orphans expire through their TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache builds a Cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current version, starting at 1.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// SummaryKey composes the cache key for a day at the current version.
func (c *Cache) SummaryKey(ctx context.Context, day string) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("dashboard:summary:%s:%d", day, ver), nil
}

// Get loads a cached summary. The boolean is false on a miss.
func (c *Cache) Get(ctx context.Context, key string) (Summary, bool, error) {
	if !c.enabled() {
		return Summary{}, false, nil
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, err
	}
	var s Summary
	if err := json.Unmarshal(payload, &s); err != nil {
		return Summary{}, false, err
	}
	return s, true, nil
}

// Put stores a summary under key.
func (c *Cache) Put(ctx context.Context, key string, s Summary) error {
	if !c.enabled() {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump invalidates every cached summary.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, versionKey).Err()
}

// StoreLowStock replaces the low stock snapshot.
func (c *Cache) StoreLowStock(ctx context.Context, items []LowStockItem) error {
	if !c.enabled() {
		return nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, lowStockKey, raw, 0).Err()
}

// LowStock returns the last snapshot, nil when no scan has run.
func (c *Cache) LowStock(ctx context.Context) ([]LowStockItem, error) {
	if !c.enabled() {
		return nil, nil
	}
	payload, err := c.client.Get(ctx, lowStockKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []LowStockItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, err
	}
	return items, nil
}
