package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCacheWithClient(client, Config{DefaultTTL: time.Minute, Prefix: "test:"})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})
	return cache, mr
}

func backends(t *testing.T) map[string]Cache {
	redisCache, _ := setupTestRedis(t)
	memory := NewMemoryCache(Config{DefaultTTL: time.Minute, Prefix: "test:"})
	t.Cleanup(func() { memory.Close() })

	return map[string]Cache{
		"memory": memory,
		"redis":  redisCache,
	}
}

func TestCache_SetGetDelete(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := c.Get(ctx, "batch")
			assert.True(t, IsCacheMiss(err))

			require.NoError(t, c.Set(ctx, "batch", []byte("archive"), 0))
			got, err := c.Get(ctx, "batch")
			require.NoError(t, err)
			assert.Equal(t, []byte("archive"), got)

			require.NoError(t, c.Delete(ctx, "batch"))
			_, err = c.Get(ctx, "batch")
			assert.True(t, IsCacheMiss(err))
		})
	}
}

func TestRedisCache_PrefixAndTTL(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, time.Minute, mr.TTL("test:k"))

	mr.FastForward(2 * time.Minute)
	_, err := c.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestNewRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr(), Cache: DefaultConfig()})
	require.NoError(t, err)
	defer c.Close()

	_, err = NewRedisCache(RedisConfig{Addr: "localhost:99999", Cache: DefaultConfig()})
	assert.Error(t, err)
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := NewMemoryCache(DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err := c.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, c.Set(ctx, "forever", []byte("v"), -1))
	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemoryCache_CopiesValue(t *testing.T) {
	c := NewMemoryCache(DefaultConfig())
	defer c.Close()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestMemoryCache_CancelledContext(t *testing.T) {
	c := NewMemoryCache(DefaultConfig())
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsCacheMiss(t *testing.T) {
	assert.True(t, IsCacheMiss(ErrCacheMiss{Key: "k"}))
	assert.False(t, IsCacheMiss(context.Canceled))
	assert.Equal(t, "cache miss: k", ErrCacheMiss{Key: "k"}.Error())
}
