package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Permissions: []string{"crm:document:read", "crm:document:write"},
		Roles:       []string{"editor", "viewer"},
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisCache(client, time.Minute, nil)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "alice")
	require.False(t, ok)

	cache.Set(ctx, "alice", testSnapshot())
	snap, ok := cache.Get(ctx, "alice")
	require.True(t, ok)
	require.Equal(t, testSnapshot(), snap)

	cache.Invalidate(ctx, "alice")
	_, ok = cache.Get(ctx, "alice")
	require.False(t, ok)
}

func TestRedisCacheTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisCache(client, time.Minute, nil)
	ctx := context.Background()

	cache.Set(ctx, "alice", testSnapshot())
	mr.FastForward(2 * time.Minute)
	_, ok := cache.Get(ctx, "alice")
	require.False(t, ok)
}

func TestRedisCacheCorruptEntryIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisCache(client, time.Minute, nil)

	require.NoError(t, mr.Set(redisKeyPrefix+"alice", "{not json"))
	_, ok := cache.Get(context.Background(), "alice")
	require.False(t, ok)
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryCache(16, time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "alice")
	require.False(t, ok)

	cache.Set(ctx, "alice", testSnapshot())
	snap, ok := cache.Get(ctx, "alice")
	require.True(t, ok)
	require.Equal(t, testSnapshot(), snap)

	cache.Invalidate(ctx, "alice")
	_, ok = cache.Get(ctx, "alice")
	require.False(t, ok)
}
