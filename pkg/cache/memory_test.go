package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Ticker string `json:"ticker"`
	Close  string `json:"close"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", []point{{"TEST-1", "99.91"}}, time.Minute))

	var got []point
	require.NoError(t, mc.Get(ctx, "a", &got))
	assert.Equal(t, []point{{"TEST-1", "99.91"}}, got)

	require.NoError(t, mc.Set(ctx, "s", "plain", 0))
	var s string
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "plain", s)
}

func TestMemoryCacheMissAndExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	var v string
	assert.ErrorIs(t, mc.Get(ctx, "missing", &v), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", "x", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &v), ErrCacheMiss)

	ok, err := mc.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheCounter(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	n, err := mc.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	for i := 1; i <= 3; i++ {
		n, err = mc.Increment(ctx, "gen")
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	n, err = mc.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = mc.IncrementBy(ctx, "gen", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(103), n)

	require.NoError(t, mc.Delete(ctx, "gen"))
	n, err = mc.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMemoryCacheNeverEvictsCounters(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	_, err := mc.Increment(ctx, "gen")
	require.NoError(t, err)

	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, mc.Set(ctx, k, "v", 0))
		time.Sleep(time.Millisecond)
	}

	n, err := mc.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := mc.Exists(ctx, "gen")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCacheCleanupSweepsExpired(t *testing.T) {
	c := NewMemoryCache(WithMemoryCleanup(5 * time.Millisecond))
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "short", 1, time.Millisecond))
	require.NoError(t, c.Set(context.Background(), "long", 1, time.Hour))

	assert.Eventually(t, func() bool {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		_, short := c.data["short"]
		_, long := c.data["long"]
		return !short && long
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	time.Sleep(time.Millisecond)

	var v string
	require.NoError(t, mc.Get(ctx, "a", &v))
	time.Sleep(time.Millisecond)

	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "c", &v))
}

func TestMemoryCacheLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock:A", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "lock:A", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock:A"))
	ok, err = mc.TryLock(ctx, "lock:A", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithLockSerializes(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(ctx, mc, "lock:T", time.Minute, func() error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestWithLockHonoursContext(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(context.Background(), "lock:X", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	called := false
	err = WithLock(ctx, mc, "lock:X", time.Minute, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}
