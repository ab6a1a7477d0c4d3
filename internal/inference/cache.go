package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores base predictions keyed by sample id.
type Cache interface {
	Get(ctx context.Context, sampleID string) (Prediction, bool, error)
	Set(ctx context.Context, sampleID string, p Prediction) error
	Clear(ctx context.Context) (int, error)
	Size(ctx context.Context) (int, error)
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Prediction
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Prediction)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, sampleID string) (Prediction, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[sampleID]
	return p, ok, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, sampleID string, p Prediction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sampleID] = p
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]Prediction)
	return n, nil
}

// Size implements Cache.
func (c *MemoryCache) Size(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// DefaultRedisKeyPrefix namespaces prediction keys in a shared Redis.
const DefaultRedisKeyPrefix = "inferguard:prediction:"

// RedisCache is a Cache backed by Redis so cached predictions survive restarts
// and are shared between API replicas.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisCacheConfig holds configuration for a RedisCache.
type RedisCacheConfig struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(cfg RedisCacheConfig) *RedisCache {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: cfg.Client, prefix: prefix, ttl: ttl}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, sampleID string) (Prediction, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+sampleID).Result()
	if errors.Is(err, redis.Nil) {
		return Prediction{}, false, nil
	}
	if err != nil {
		return Prediction{}, false, fmt.Errorf("redis get: %w", err)
	}

	var p Prediction
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Prediction{}, false, fmt.Errorf("decode cached prediction: %w", err)
	}
	return p, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, sampleID string, p Prediction) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prediction: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+sampleID, string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear implements Cache.
func (c *RedisCache) Clear(ctx context.Context) (int, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(n), nil
}

// Size implements Cache.
func (c *RedisCache) Size(ctx context.Context) (int, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (c *RedisCache) keys(ctx context.Context) ([]string, error) {
	var (
		all    []string
		cursor uint64
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		all = append(all, keys...)
		if next == 0 {
			return all, nil
		}
		cursor = next
	}
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
