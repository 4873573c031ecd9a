package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLimiterGrantsWithinBudget(t *testing.T) {
	client := newTestRedis(t)
	l := NewRedisLimiter(client, "kiwi", 3, time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, err := l.tryAcquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be granted", i+1)
	}

	ok, err := l.tryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "fourth request in the window must be denied")
}

func TestRedisLimiterIsPerSource(t *testing.T) {
	client := newTestRedis(t)
	kiwi := NewRedisLimiter(client, "kiwi", 1, time.Minute)
	luft := NewRedisLimiter(client, "lufthansa", 1, time.Minute)

	ctx := context.Background()
	ok, err := kiwi.tryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = luft.tryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "sources must not share a budget")
}

func TestRedisLimiterWaitHonorsContext(t *testing.T) {
	client := newTestRedis(t)
	l := NewRedisLimiter(client, "kiwi", 1, time.Minute)

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := l.Wait(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalLimiterThrottles(t *testing.T) {
	// 60 req/min is one token per second with burst 1.
	l := NewLocalLimiter(60)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestLimiterSetBuildsLazily(t *testing.T) {
	var built []string
	set := newLimiterSet(func(source string) Limiter {
		built = append(built, source)
		return nopLimiter{}
	})

	set.get("a")
	set.get("a")
	set.get("b")
	assert.Equal(t, []string{"a", "b"}, built)
}
