package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheGetSet(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(client, "st")

	mock.ExpectSet("st:signals:A:3", []byte(`{"ticker":"A","close":"1"}`), time.Minute).SetVal("OK")
	require.NoError(t, c.Set(ctx, "signals:A:3", point{"A", "1"}, time.Minute))

	mock.ExpectGet("st:signals:A:3").SetVal(`{"ticker":"A","close":"1"}`)
	var p point
	require.NoError(t, c.Get(ctx, "signals:A:3", &p))
	assert.Equal(t, point{"A", "1"}, p)

	mock.ExpectGet("st:signals:A:4").RedisNil()
	assert.ErrorIs(t, c.Get(ctx, "signals:A:4", &p), ErrCacheMiss)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheCounter(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(client, "st")

	mock.ExpectGet("st:gen:A").RedisNil()
	n, err := c.Counter(ctx, "gen:A")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	mock.ExpectIncr("st:gen:A").SetVal(1)
	n, err = c.Increment(ctx, "gen:A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectGet("st:gen:A").SetVal("1")
	n, err = c.Counter(ctx, "gen:A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectIncrBy("st:gen:A", 41).SetVal(42)
	n, err = c.IncrementBy(ctx, "gen:A", 41)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheLock(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(client, "st")

	mock.ExpectSetNX("st:lock:A", "locked", 30*time.Second).SetVal(true)
	mock.ExpectSetNX("st:lock:A", "locked", 30*time.Second).SetVal(false)
	mock.ExpectDel("st:lock:A").SetVal(1)

	ok, err := c.TryLock(ctx, "lock:A", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.TryLock(ctx, "lock:A", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Unlock(ctx, "lock:A"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheDeleteError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(client, "st")

	mock.ExpectUnlink("st:a", "st:b").SetErr(redis.ErrClosed)
	assert.ErrorIs(t, c.Delete(context.Background(), "a", "b"), redis.ErrClosed)
}

func TestLayeredCacheFillsMemory(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	lc := NewLayeredCache(NewRedisCacheFromClient(client, "st"))
	defer lc.memCache.Close()

	mock.ExpectGet("st:k").SetVal(`{"ticker":"A","close":"2"}`)

	var p point
	require.NoError(t, lc.Get(ctx, "k", &p))
	assert.Equal(t, "2", p.Close)

	// second read is served from L1, no further Redis expectation
	var again point
	require.NoError(t, lc.Get(ctx, "k", &again))
	assert.Equal(t, p, again)
	assert.NoError(t, mock.ExpectationsWereMet())
}
