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

func newTestCache(t *testing.T) (*RedisBarcodeCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBarcodeCache(client, time.Hour), mr
}

func TestRedisBarcodeCache_RoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "0000070000450")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "0000070000450", 7))
	id, ok, err := c.Get(ctx, "0000070000450")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"0000070000450"))

	require.NoError(t, c.Delete(ctx, "0000070000450"))
	_, ok, err = c.Get(ctx, "0000070000450")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBarcodeCache_Expiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "1001230000890", 123))
	mr.FastForward(2 * time.Hour)

	_, ok, err := c.Get(ctx, "1001230000890")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBarcodeCache_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set(keyPrefix+"2000420003450", "not-a-number"))

	_, ok, err := c.Get(context.Background(), "2000420003450")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(keyPrefix+"2000420003450"))
}

func TestRedisBarcodeCache_ServerDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), "0000070000450")
	assert.Error(t, err)
}

func TestNewRedisBarcodeCache_DefaultTTL(t *testing.T) {
	c := NewRedisBarcodeCache(redis.NewClient(&redis.Options{}), 0)
	assert.Equal(t, DefaultTTL, c.ttl)
}

func TestNoop(t *testing.T) {
	var c Noop
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "x", 1))
	_, ok, err := c.Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Delete(ctx, "x"))
}
