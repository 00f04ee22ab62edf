package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_TTL(t *testing.T) {
	c := NewMemoryStore(4)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "test:key", []byte("hello"), 20*time.Millisecond))

	got, hit, err := c.Get(ctx, "test:key")
	require.NoError(t, err)
	require.True(t, hit, "expected hit immediately after Set")
	assert.Equal(t, "hello", string(got))

	now = now.Add(20 * time.Millisecond)

	_, hit, err = c.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.False(t, hit, "expected miss after TTL expiry")
	assert.Equal(t, 0, c.Len(), "expired entry should be dropped on read")
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))

	// touch a so b becomes the eviction candidate
	_, hit, _ := c.Get(ctx, "a")
	require.True(t, hit)

	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Minute))
	assert.Equal(t, 2, c.Len())

	_, hit, _ = c.Get(ctx, "b")
	assert.False(t, hit, "b should have been evicted")
	_, hit, _ = c.Get(ctx, "a")
	assert.True(t, hit)
	_, hit, _ = c.Get(ctx, "c")
	assert.True(t, hit)
}

func TestMemoryStore_OverwriteKeepsOneEntry(t *testing.T) {
	c := NewMemoryStore(8)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("old"), time.Minute))
	require.NoError(t, c.Set(ctx, "k", []byte("new"), time.Minute))

	got, hit, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "new", string(got))
	assert.Equal(t, 1, c.Len())
}

func TestMemoryStore_CopiesValue(t *testing.T) {
	c := NewMemoryStore(8)
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'x'

	got, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestMemoryStore_NonPositiveTTLDeletes(t *testing.T) {
	c := NewMemoryStore(8)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))

	_, hit, _ := c.Get(ctx, "k")
	assert.False(t, hit)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	c := NewMemoryStore(16)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%20)
			_ = c.Set(ctx, key, []byte(key), time.Minute)
			if v, ok, _ := c.Get(ctx, key); ok {
				assert.Equal(t, key, string(v))
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 16)
}
