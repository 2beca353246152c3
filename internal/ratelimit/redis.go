package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments the window counter and sets its expiry in one atomic
// step. The expiry is attached only when the key is first created, so a
// window key can never exist without a TTL, and later increments never push
// the reset point out.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// RedisCounter is the shared counter store. Redis serializes increments to
// the same key across all server processes, so window counts are exact
// system-wide while Redis is reachable.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

// RedisCounterOption configures optional counter behavior.
type RedisCounterOption func(*RedisCounter)

// WithKeyPrefix overrides the Redis key prefix (default "ratelimit:").
func WithKeyPrefix(prefix string) RedisCounterOption {
	return func(rc *RedisCounter) {
		rc.prefix = prefix
	}
}

// NewRedisCounter creates a counter store backed by the given Redis client.
func NewRedisCounter(client *redis.Client, opts ...RedisCounterOption) *RedisCounter {
	rc := &RedisCounter{
		client: client,
		prefix: "ratelimit:",
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Incr atomically increments the counter for key, creating it with the window
// expiry on first use.
func (rc *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	values, err := incrScript.Run(ctx, rc.client, []string{rc.prefix + key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr: %w", err)
	}
	if len(values) != 2 {
		return 0, 0, fmt.Errorf("redis incr: unexpected script result: %v", values)
	}

	count, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("redis incr: unexpected count type %T", values[0])
	}
	ttlMillis, ok := values[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("redis incr: unexpected ttl type %T", values[1])
	}

	ttl := time.Duration(ttlMillis) * time.Millisecond
	if ttl < 0 {
		// PTTL reports -1 for keys without expiry; treat as a full window.
		ttl = window
	}

	return count, ttl, nil
}
