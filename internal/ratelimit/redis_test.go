package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisClient connects to the Redis instance named by
// CHAINGATE_TEST_REDIS_ADDR, skipping the test when none is configured.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CHAINGATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHAINGATE_TEST_REDIS_ADDR not set; skipping Redis-backed tests")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisCounter_Incr(t *testing.T) {
	counter := NewRedisCounter(redisClient(t))
	key := "test:" + uuid.NewString()
	ctx := context.Background()

	count, ttl, err := counter.Incr(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Greater(t, ttl, 50*time.Second)

	count, _, err = counter.Incr(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRedisCounter_TTLNotExtendedByLaterIncrements(t *testing.T) {
	counter := NewRedisCounter(redisClient(t))
	key := "test:" + uuid.NewString()
	ctx := context.Background()

	_, first, err := counter.Incr(ctx, key, 2*time.Second)
	require.NoError(t, err)

	time.Sleep(500 * time.Millisecond)

	_, second, err := counter.Incr(ctx, key, 2*time.Second)
	require.NoError(t, err)
	assert.Less(t, second, first, "expiry is set only when the window is created")
}

func TestRedisCounter_KeyExpires(t *testing.T) {
	counter := NewRedisCounter(redisClient(t))
	key := "test:" + uuid.NewString()
	ctx := context.Background()

	_, _, err := counter.Incr(ctx, key, 200*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(400 * time.Millisecond)

	count, _, err := counter.Incr(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "an expired window restarts at one")
}

func TestRedisCounter_KeyPrefix(t *testing.T) {
	client := redisClient(t)
	counter := NewRedisCounter(client, WithKeyPrefix("cg-test:"))
	key := "prefixed:" + uuid.NewString()
	ctx := context.Background()

	_, _, err := counter.Incr(ctx, key, time.Minute)
	require.NoError(t, err)

	exists, err := client.Exists(ctx, "cg-test:"+key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}
