package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server only when REDIS_ADDR is set.
func TestRedisStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := NewRedisStore(client, RedisConfig{Prefix: "chatbot-test"})
	require.NoError(t, s.Ping(ctx))

	key := BuildScriptCacheKey("redis round trip", "test").String()
	t.Cleanup(func() { _ = client.Del(context.Background(), "chatbot-test:"+key).Err() })

	_, hit, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, s.Set(ctx, key, []byte("payload"), time.Minute))

	got, hit, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "payload", string(got))
}
