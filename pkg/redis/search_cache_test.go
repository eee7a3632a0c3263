package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*SearchCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSearchCache(client), mr
}

func TestSearchCache_Miss(t *testing.T) {
	cache, _ := newTestCache(t)

	data, ok, err := cache.Get(context.Background(), "abba karaoke:10")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestSearchCache_SetGet(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "abba karaoke:10", []byte(`[{"id":"vid1"}]`), 30*time.Minute))

	data, ok, err := cache.Get(ctx, "abba karaoke:10")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"id":"vid1"}]`, string(data))
	assert.True(t, mr.Exists("search:abba karaoke:10"))
	assert.Equal(t, 30*time.Minute, mr.TTL("search:abba karaoke:10"))
}

func TestSearchCache_Expiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchCache_Delete(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, cache.Delete(ctx, "k"))

	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewClient(context.Background(), addr, "")
	assert.Error(t, err)
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), mr.Addr(), "")
	require.NoError(t, err)
	client.Close()
}
