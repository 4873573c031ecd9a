package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter gates one request slot per Wait call. Implementations block
// until a slot is free or the context ends.
type Limiter interface {
	Wait(ctx context.Context) error
}

// RedisLimiter is a sliding-window limiter over a Redis sorted set,
// shared across worker processes. Each member is one request timestamp;
// expired members are pruned on every acquire.
type RedisLimiter struct {
	client      *redis.Client
	key         string
	maxRequests int
	window      time.Duration
}

// NewRedisLimiter builds a per-source limiter. maxRequests is the
// budget per window; the window defaults to one minute when zero.
func NewRedisLimiter(client *redis.Client, source string, maxRequests int, window time.Duration) *RedisLimiter {
	if window == 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		client:      client,
		key:         "rate_limit:" + source,
		maxRequests: maxRequests,
		window:      window,
	}
}

// tryAcquire attempts one slot, returning whether it was granted.
func (l *RedisLimiter) tryAcquire(ctx context.Context) (bool, error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)
	windowStart := now - l.window.Seconds()
	member := strconv.FormatFloat(now, 'f', -1, 64)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, l.key, "0", strconv.FormatFloat(windowStart, 'f', -1, 64))
	countCmd := pipe.ZCard(ctx, l.key)
	pipe.ZAdd(ctx, l.key, redis.Z{Score: now, Member: member})
	pipe.Expire(ctx, l.key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limiter pipeline: %w", err)
	}

	if countCmd.Val() >= int64(l.maxRequests) {
		// Give back the slot we optimistically took.
		if err := l.client.ZRem(ctx, l.key, member).Err(); err != nil {
			return false, fmt.Errorf("rate limiter release: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// Wait blocks until a slot is granted, polling once per second like the
// crawl workers expect: fairness across processes comes from Redis, not
// from queueing order.
func (l *RedisLimiter) Wait(ctx context.Context) error {
	for {
		ok, err := l.tryAcquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// LocalLimiter is the in-process fallback when Redis is not configured:
// a token bucket sized to the same requests-per-minute budget.
type LocalLimiter struct {
	limiter *rate.Limiter
}

// NewLocalLimiter builds a token bucket admitting maxPerMinute requests
// per minute with a burst of one.
func NewLocalLimiter(maxPerMinute int) *LocalLimiter {
	return &LocalLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), 1),
	}
}

func (l *LocalLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// limiterSet hands out one limiter per source, built lazily.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]Limiter
	build    func(source string) Limiter
}

func newLimiterSet(build func(source string) Limiter) *limiterSet {
	return &limiterSet{limiters: map[string]Limiter{}, build: build}
}

func (s *limiterSet) get(source string) Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[source]
	if !ok {
		l = s.build(source)
		s.limiters[source] = l
	}
	return l
}
