package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, prefix string) (*miniredis.Miniredis, RedisAdapter) {
	mr := miniredis.RunT(t)
	adapter, err := NewRedisAdapter(t.Name(), prefix, &goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	return mr, adapter
}

func TestNewRedisAdapter_CachesByName(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := &goredis.UniversalOptions{Addrs: []string{mr.Addr()}}

	first, err := NewRedisAdapter("cache-by-name", "", opts)
	require.NoError(t, err)
	second, err := NewRedisAdapter("cache-by-name", "", opts)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first, GetRedis("cache-by-name"))
}

func TestNewRedisAdapter_Unreachable(t *testing.T) {
	_, err := NewRedisAdapter("unreachable", "", &goredis.UniversalOptions{
		Addrs:       []string{"127.0.0.1:1"},
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	assert.Error(t, err)
}

func TestRedisAdapter_KeyOperations(t *testing.T) {
	mr, r := newTestAdapter(t, "loyalty:")
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("loyalty:k"))

	got, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := r.SetNX(ctx, "k", []byte("other"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := r.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, r.Del(ctx, "k"))
	_, err = r.Get(ctx, "k")
	assert.ErrorIs(t, err, NilError)

	n, err := r.IncrWithTTL(ctx, "counter", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = r.IncrWithTTL(ctx, "counter", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, time.Hour, mr.TTL("loyalty:counter"))

	assert.NoError(t, r.Ping(ctx))
}

func TestRedisAdapter_Streams(t *testing.T) {
	_, r := newTestAdapter(t, "")
	ctx := context.Background()

	require.NoError(t, r.XGroupCreateMkStream(ctx, "s", "g", "0"))
	assert.True(t, IsBusyGroup(r.XGroupCreateMkStream(ctx, "s", "g", "0")))

	_, err := r.XReadGroup(ctx, "g", "c1", "s", 10)
	assert.ErrorIs(t, err, NilError)

	id, err := r.XAdd(ctx, "s", map[string]interface{}{"data": "one"}, 100)
	require.NoError(t, err)

	msgs, err := r.XReadGroup(ctx, "g", "c1", "s", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "one", msgs[0].Values["data"])

	count, err := r.XPendingCount(ctx, "s", "g")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	entries, err := r.XPendingEntries(ctx, "s", "g", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c1", entries[0].Consumer)
	assert.Equal(t, int64(1), entries[0].RetryCount)

	claimed, err := r.XClaim(ctx, "s", "g", "c2", 0, id)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	entries, err = r.XPendingEntries(ctx, "s", "g", 10)
	require.NoError(t, err)
	assert.Equal(t, "c2", entries[0].Consumer)
	assert.Equal(t, int64(2), entries[0].RetryCount)

	require.NoError(t, r.XAck(ctx, "s", "g", id))
	count, err = r.XPendingCount(ctx, "s", "g")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	length, err := r.XLen(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}
