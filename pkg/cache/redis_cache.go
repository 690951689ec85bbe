package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// RedisCache stores generated content keyed by deterministic cache keys.
// Entries are a pure optimization: every read error is treated as a miss and
// every write is best-effort, so a broken cache only costs latency, never
// correctness.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to Redis. prefix namespaces this deployment's keys.
func NewRedisCache(addr, password, prefix string, ttl time.Duration) (*RedisCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("cache redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "postflow:cache"
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

// Get returns the cached value for key. Backend errors are logged and
// reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, c.prefix+":"+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("cache read failed", "key", key, "err", err)
		}
		return "", false
	}
	return value, true
}

// Set writes the value with the configured TTL. Failures are logged, never
// surfaced.
func (c *RedisCache) Set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, c.prefix+":"+key, value, c.ttl).Err(); err != nil {
		slog.Warn("cache write failed", "key", key, "err", err)
	}
}

// InvalidatePrefix deletes every entry under keyPrefix. Used to drop a whole
// project's cached generations when its source content or brand voice
// changes.
func (c *RedisCache) InvalidatePrefix(ctx context.Context, keyPrefix string) error {
	pattern := c.prefix + ":" + keyPrefix + "*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
