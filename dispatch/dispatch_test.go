package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/pkg/cache"
)

type scriptedCrawler struct {
	name    string
	delay   time.Duration
	flights []core.NormalizedFlight
	fail    error
	panics  bool
}

func (s *scriptedCrawler) Name() string { return s.name }

func (s *scriptedCrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	if s.panics {
		panic("adapter bug")
	}
	start := time.Now()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return core.FailedCrawlResult(core.SourceDirectCrawl,
				errors.New("timeout waiting for upstream"), time.Since(start))
		}
	}
	if s.fail != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, s.fail, time.Since(start))
	}
	return core.NewCrawlResult(core.SourceDirectCrawl, s.flights, time.Since(start))
}

func (s *scriptedCrawler) HealthCheck(ctx context.Context) bool { return true }
func (s *scriptedCrawler) Close() error                         { return nil }

func register(reg *crawler.Registry, c *scriptedCrawler) {
	reg.Register(c.name, func() (crawler.Crawler, error) { return c, nil })
}

func testFlight(num string, dep time.Time) core.NormalizedFlight {
	return core.NormalizedFlight{
		FlightNumber:  num,
		AirlineCode:   num[:2],
		Origin:        "ICN",
		Destination:   "NRT",
		DepartureTime: dep,
		ArrivalTime:   dep.Add(2 * time.Hour),
		Source:        core.SourceDirectCrawl,
		Prices:        []core.NormalizedPrice{{Amount: 100000, Currency: "KRW", Source: core.SourceDirectCrawl}},
	}
}

func testRequest() core.SearchRequest {
	return core.NewSearchRequest("ICN", "NRT", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
}

func TestDispatchSingle(t *testing.T) {
	reg := crawler.NewRegistry()
	register(reg, &scriptedCrawler{name: "kiwi", flights: []core.NormalizedFlight{
		testFlight("KE123", time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)),
	}})

	d := New(reg, Options{})
	res := d.DispatchSingle(context.Background(), "kiwi", testRequest())
	assert.True(t, res.Success)
	assert.Len(t, res.Flights, 1)
}

func TestDispatchSingleUnknownSource(t *testing.T) {
	d := New(crawler.NewRegistry(), Options{})
	res := d.DispatchSingle(context.Background(), "nope", testRequest())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown source")
}

func TestDispatchSingleInvalidRequest(t *testing.T) {
	d := New(crawler.NewRegistry(), Options{})
	req := testRequest()
	req.Destination = req.Origin
	res := d.DispatchSingle(context.Background(), "kiwi", req)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid search request")
}

func TestDispatchSingleTimeout(t *testing.T) {
	reg := crawler.NewRegistry()
	register(reg, &scriptedCrawler{name: "slow", delay: 500 * time.Millisecond})

	d := New(reg, Options{SourceTimeouts: map[string]time.Duration{"slow": 50 * time.Millisecond}})
	res := d.DispatchSingle(context.Background(), "slow", testRequest())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timeout")
}

func TestDispatchSinglePanicBecomesEnvelope(t *testing.T) {
	reg := crawler.NewRegistry()
	register(reg, &scriptedCrawler{name: "buggy", panics: true})

	d := New(reg, Options{})
	res := d.DispatchSingle(context.Background(), "buggy", testRequest())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "panicked")
}

func TestDispatchParallelPartialFailure(t *testing.T) {
	dep := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	shared := testFlight("KE123", dep)

	reg := crawler.NewRegistry()
	register(reg, &scriptedCrawler{name: "a", flights: []core.NormalizedFlight{
		shared, testFlight("OZ102", dep.Add(time.Hour)),
	}})
	register(reg, &scriptedCrawler{name: "b", delay: time.Second})
	register(reg, &scriptedCrawler{name: "c", flights: []core.NormalizedFlight{shared}})

	d := New(reg, Options{SourceTimeouts: map[string]time.Duration{"b": 50 * time.Millisecond}})
	results := d.DispatchParallel(context.Background(), []string{"a", "b", "c"}, testRequest())

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, strings.ToLower(results[1].Error), "timeout")
	assert.True(t, results[2].Success)

	merged := d.DispatchPipeline(context.Background(), []string{"a", "b", "c"}, testRequest())
	require.Len(t, merged, 2)
	for _, f := range merged {
		if f.FlightNumber == "KE123" {
			assert.Len(t, f.Prices, 2, "duplicate flight should union prices from a and c")
		}
	}
}

func TestDispatchParallelNoSiblingCancellation(t *testing.T) {
	dep := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	reg := crawler.NewRegistry()
	register(reg, &scriptedCrawler{name: "fast-fail", fail: errors.New("boom")})
	register(reg, &scriptedCrawler{name: "slow-ok", delay: 100 * time.Millisecond,
		flights: []core.NormalizedFlight{testFlight("KE123", dep)}})

	d := New(reg, Options{})
	results := d.DispatchParallel(context.Background(), []string{"fast-fail", "slow-ok"}, testRequest())
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success, "a sibling failure must not cancel other sources")
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	stub := &scriptedCrawler{name: "flaky", fail: errors.New("upstream down")}
	reg := crawler.NewRegistry()
	register(reg, stub)

	d := New(reg, Options{BreakerThreshold: 2, BreakerCooldown: time.Minute})

	for i := 0; i < 2; i++ {
		res := d.DispatchSingle(context.Background(), "flaky", testRequest())
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "upstream down")
	}

	// Third call fails fast on the open circuit without touching the
	// adapter.
	stub.fail = nil
	stub.flights = []core.NormalizedFlight{testFlight("KE123", time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC))}
	res := d.DispatchSingle(context.Background(), "flaky", testRequest())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unavailable")
	assert.NotContains(t, res.Error, "panicked")
}

func TestDispatchSingleServesFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	stub := &scriptedCrawler{name: "kiwi", flights: []core.NormalizedFlight{
		testFlight("KE123", time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)),
	}}
	reg := crawler.NewRegistry()
	register(reg, stub)

	d := New(reg, Options{Cache: cache.NewRedisCache(client, "test"), CacheTTL: time.Minute})

	first := d.DispatchSingle(context.Background(), "kiwi", testRequest())
	require.True(t, first.Success)

	// The second identical search must not reach the adapter.
	stub.fail = errors.New("upstream down")
	second := d.DispatchSingle(context.Background(), "kiwi", testRequest())
	assert.True(t, second.Success)
	assert.Len(t, second.Flights, 1)

	// A different search misses the cache and sees the failure.
	other := testRequest()
	other.Destination = "KIX"
	res := d.DispatchSingle(context.Background(), "kiwi", other)
	assert.False(t, res.Success)
}
