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

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, "skyfare"), mr
}

func TestGetSetDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestTTLExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestJSONRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	type fare struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	}
	require.NoError(t, SetJSON(ctx, c, "fare", fare{Amount: 1250.50, Currency: "KRW"}, time.Minute))

	var got fare
	require.NoError(t, GetJSON(ctx, c, "fare", &got))
	assert.Equal(t, fare{Amount: 1250.50, Currency: "KRW"}, got)
}

func TestResultKeyDistinguishesSearches(t *testing.T) {
	a := ResultKey("google_flights", "ICN", "JFK", "2026-05-10", "", "ECONOMY", "KRW", 1)
	b := ResultKey("google_flights", "ICN", "JFK", "2026-05-10", "2026-05-20", "ECONOMY", "KRW", 1)
	c := ResultKey("kiwi", "ICN", "JFK", "2026-05-10", "", "ECONOMY", "KRW", 1)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}
