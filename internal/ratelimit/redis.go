package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// RedisCounterStore keeps fixed-window counters in Redis so limits hold
// across replicas. INCR+PEXPIRE run in one Lua script, making the
// increment-then-check race-free.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCounterStore creates a Redis-backed distributed counter store.
func NewRedisCounterStore(addr, password, prefix string) (*RedisCounterStore, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "postflow:ratelimit"
	}
	return &RedisCounterStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
	}, nil
}

// Incr implements CounterStore. The key's TTL doubles as the lazy window
// reset: once it expires the next increment starts a fresh window.
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		return 0, 0, errors.New("rate limiter window must be positive")
	}
	callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	values, err := fixedWindowScript.Run(callCtx, s.client, []string{s.prefix + ":" + key}, windowMs).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(values) != 2 {
		return 0, 0, errors.New("unexpected rate limiter script reply")
	}
	count := values[0]
	remaining := time.Duration(values[1]) * time.Millisecond
	if remaining < 0 {
		remaining = window
	}
	return count, remaining, nil
}
