// Package dispatch fans searches out to source adapters with per-source
// rate limiting, circuit breaking and deadlines. Adapter failures never
// escape a fan-out: they are materialized as failed result envelopes.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/merge"
	"github.com/skyfare/skyfare/pkg/cache"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/pkg/metrics"
	"github.com/skyfare/skyfare/pkg/notify"
)

// Options tunes the dispatcher.
type Options struct {
	// DefaultTimeout applies to sources without a specific entry.
	DefaultTimeout time.Duration

	// SourceTimeouts overrides the deadline per source name. Browser
	// sources need several minutes; API sources tens of seconds.
	SourceTimeouts map[string]time.Duration

	// RateLimits is requests-per-minute per source; DefaultRateLimit
	// covers the rest. Zero disables limiting for that source.
	RateLimits       map[string]int
	DefaultRateLimit int

	// Redis enables the cross-process sliding-window limiter. When
	// nil, limiting falls back to an in-process token bucket.
	Redis *redis.Client

	// BreakerThreshold is the consecutive-failure count that opens a
	// source's circuit. Zero disables circuit breaking.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration

	// Cache short-circuits repeat searches per (source, search) pair.
	// Nil disables caching; CacheTTL defaults to five minutes.
	Cache    cache.Cache
	CacheTTL time.Duration

	// Notifier receives an alert when a source's circuit opens.
	Notifier *notify.Client
}

// Dispatcher resolves sources through a registry and runs crawls with
// the shared operational guards.
type Dispatcher struct {
	registry *crawler.Registry
	opts     Options
	limiters *limiterSet

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New builds a dispatcher over the registry.
func New(registry *crawler.Registry, opts Options) *Dispatcher {
	if opts.DefaultTimeout == 0 {
		opts.DefaultTimeout = 60 * time.Second
	}
	if opts.BreakerCooldown == 0 {
		opts.BreakerCooldown = 2 * time.Minute
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	d := &Dispatcher{
		registry: registry,
		opts:     opts,
		breakers: map[string]*gobreaker.CircuitBreaker{},
	}
	d.limiters = newLimiterSet(func(source string) Limiter {
		limit := opts.DefaultRateLimit
		if v, ok := opts.RateLimits[source]; ok {
			limit = v
		}
		if limit <= 0 {
			return nopLimiter{}
		}
		if opts.Redis != nil {
			return NewRedisLimiter(opts.Redis, source, limit, time.Minute)
		}
		return NewLocalLimiter(limit)
	})
	return d
}

type nopLimiter struct{}

func (nopLimiter) Wait(ctx context.Context) error { return ctx.Err() }

func (d *Dispatcher) breaker(source string) *gobreaker.CircuitBreaker {
	if d.opts.BreakerThreshold == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.breakers[source]
	if !ok {
		threshold := d.opts.BreakerThreshold
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    source,
			Timeout: d.opts.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("source circuit state change",
					"source", name, "from", from.String(), "to", to.String())
				if to == gobreaker.StateOpen {
					d.opts.Notifier.ErrorSpike(context.Background(), name, int(threshold))
				}
			},
		})
		d.breakers[source] = cb
	}
	return cb
}

func resultKey(source string, req core.SearchRequest) string {
	ret := ""
	if req.ReturnDate != nil {
		ret = req.ReturnDate.Format(time.DateOnly)
	}
	return cache.ResultKey(source,
		req.Origin, req.Destination,
		req.DepartureDate.Format(time.DateOnly), ret,
		string(req.CabinClass), req.Currency, req.Passengers.Adults)
}

func (d *Dispatcher) timeoutFor(source string, task core.CrawlTask) time.Duration {
	if task.Deadline > 0 {
		return task.Deadline
	}
	if t, ok := d.opts.SourceTimeouts[source]; ok {
		return t
	}
	return d.opts.DefaultTimeout
}

// DispatchSingle runs one source for one search. The returned envelope
// always carries the outcome; errors never propagate.
func (d *Dispatcher) DispatchSingle(ctx context.Context, source string, req core.SearchRequest) core.CrawlResult {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return core.FailedCrawlResult("", fmt.Errorf("invalid search request: %w", err), time.Since(start))
	}

	key := resultKey(source, req)
	if d.opts.Cache != nil {
		var cached core.CrawlResult
		if err := cache.GetJSON(ctx, d.opts.Cache, key, &cached); err == nil {
			logger.Debug("crawl served from cache", "source", source, "key", key)
			return cached
		}
	}

	c, err := d.registry.Build(source)
	if err != nil {
		return core.FailedCrawlResult("", fmt.Errorf("build source %s: %w", source, err), time.Since(start))
	}
	defer c.Close()

	task := core.CrawlTask{Request: req}
	timeout := d.timeoutFor(source, task)

	if err := d.limiters.get(source).Wait(ctx); err != nil {
		return core.FailedCrawlResult("", fmt.Errorf("rate limit wait for %s: %w", source, err), time.Since(start))
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var panicked bool
	run := func() core.CrawlResult {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				logger.Error(nil, "source panicked", "source", source, "panic", fmt.Sprintf("%v", r))
			}
		}()
		return d.runGuarded(runCtx, source, c, task)
	}

	res := run()
	if panicked {
		res = core.FailedCrawlResult("", fmt.Errorf("source %s panicked", source), time.Since(start))
	}
	if runCtx.Err() == context.DeadlineExceeded && !res.Success {
		res.Error = fmt.Sprintf("timeout after %s: %s", timeout, res.Error)
	}

	if d.opts.Cache != nil && res.Success {
		if err := cache.SetJSON(ctx, d.opts.Cache, key, res, d.opts.CacheTTL); err != nil {
			logger.Warn("failed to cache crawl result", "source", source, "error", err)
		}
	}

	metrics.ObserveCrawl(source, res.Success, time.Since(start))
	logger.Info("crawl finished",
		"source", source,
		"route", req.Origin+"-"+req.Destination,
		"success", res.Success,
		"flights", len(res.Flights),
		"duration_ms", time.Since(start).Milliseconds())
	return res
}

// runGuarded routes the crawl through the source's circuit breaker when
// one is configured. An open circuit fails fast without touching the
// upstream.
func (d *Dispatcher) runGuarded(ctx context.Context, source string, c crawler.Crawler, task core.CrawlTask) core.CrawlResult {
	cb := d.breaker(source)
	if cb == nil {
		return c.Crawl(ctx, task)
	}

	out, err := cb.Execute(func() (any, error) {
		res := c.Crawl(ctx, task)
		if !res.Success {
			return res, fmt.Errorf("crawl failed: %s", res.Error)
		}
		return res, nil
	})
	if res, ok := out.(core.CrawlResult); ok {
		return res
	}
	// The breaker rejected the call without running it.
	return core.FailedCrawlResult(task.Source, fmt.Errorf("source %s unavailable: %w", source, err), 0)
}

// DispatchParallel fans the search out to every named source
// concurrently and returns when all of them have completed or timed
// out. One result per source, in input order; there is no early
// cancellation on first success and no cancellation of siblings on
// failure.
func (d *Dispatcher) DispatchParallel(ctx context.Context, sources []string, req core.SearchRequest) []core.CrawlResult {
	results := make([]core.CrawlResult, len(sources))
	var wg sync.WaitGroup

	for i, source := range sources {
		wg.Add(1)
		go func(i int, source string) {
			defer wg.Done()
			results[i] = d.DispatchSingle(ctx, source, req)
		}(i, source)
	}
	wg.Wait()
	return results
}

// DispatchPipeline chains a parallel fan-out into the merger, returning
// the deduplicated flight list.
func (d *Dispatcher) DispatchPipeline(ctx context.Context, sources []string, req core.SearchRequest) []core.NormalizedFlight {
	return merge.Merge(d.DispatchParallel(ctx, sources, req))
}
