package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

// stubCrawler is a scriptable crawler for contract tests.
type stubCrawler struct {
	name    string
	result  core.CrawlResult
	healthy bool
	calls   int
	closed  int
}

func (s *stubCrawler) Name() string { return s.name }

func (s *stubCrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	s.calls++
	return s.result
}

func (s *stubCrawler) HealthCheck(ctx context.Context) bool { return s.healthy }

func (s *stubCrawler) Close() error {
	s.closed++
	return nil
}

func okResult(source core.DataSource, n int) core.CrawlResult {
	flights := make([]core.NormalizedFlight, n)
	for i := range flights {
		flights[i] = core.NormalizedFlight{
			FlightNumber: "KE123",
			Origin:       "ICN",
			Destination:  "NRT",
			Source:       source,
		}
	}
	return core.NewCrawlResult(source, flights, 100*time.Millisecond)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.Has("kiwi"))

	reg.Register("kiwi", func() (Crawler, error) {
		return &stubCrawler{name: "kiwi", result: okResult(core.SourceKiwiAPI, 1)}, nil
	})
	reg.Register("amadeus", func() (Crawler, error) {
		return nil, errors.New("missing credentials")
	})

	assert.Equal(t, []string{"amadeus", "kiwi"}, reg.Names())

	c, err := reg.Build("kiwi")
	require.NoError(t, err)
	assert.Equal(t, "kiwi", c.Name())

	_, err = reg.Build("amadeus")
	assert.Error(t, err)

	_, err = reg.Build("nope")
	assert.ErrorContains(t, err, `unknown source "nope"`)
}

func TestFallbackFirstSuccessWins(t *testing.T) {
	primary := &stubCrawler{name: "official", result: core.FailedCrawlResult(core.SourceOfficialAPI, errors.New("HMAC rejected"), 0)}
	secondary := &stubCrawler{name: "web", result: okResult(core.SourceDirectCrawl, 2)}
	tertiary := &stubCrawler{name: "browser", result: okResult(core.SourceDirectCrawl, 1)}

	fb := NewFallback("turkishair", primary, secondary, tertiary)
	res := fb.Crawl(context.Background(), core.CrawlTask{Source: core.SourceDirectCrawl})

	assert.True(t, res.Success)
	assert.Len(t, res.Flights, 2)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
	assert.Equal(t, 0, tertiary.calls, "later inners must not run after a success")
}

func TestFallbackAllFailProducesEnvelope(t *testing.T) {
	a := &stubCrawler{name: "a", result: core.FailedCrawlResult(core.SourceDirectCrawl, errors.New("timeout"), 0)}
	b := &stubCrawler{name: "b", result: core.FailedCrawlResult(core.SourceDirectCrawl, errors.New("anti-bot"), 0)}

	fb := NewFallback("airseoul", a, b)
	res := fb.Crawl(context.Background(), core.CrawlTask{Source: core.SourceDirectCrawl})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "a: timeout")
	assert.Contains(t, res.Error, "b: anti-bot")
}

func TestFallbackStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &stubCrawler{name: "a", result: okResult(core.SourceDirectCrawl, 1)}
	fb := NewFallback("x", a)
	res := fb.Crawl(ctx, core.CrawlTask{Source: core.SourceDirectCrawl})

	assert.False(t, res.Success)
	assert.Equal(t, 0, a.calls)
}

func TestFallbackHealthAndClose(t *testing.T) {
	a := &stubCrawler{name: "a", healthy: false}
	b := &stubCrawler{name: "b", healthy: true}

	fb := NewFallback("x", a, b)
	assert.True(t, fb.HealthCheck(context.Background()))

	b.healthy = false
	assert.False(t, fb.HealthCheck(context.Background()))

	require.NoError(t, fb.Close())
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
}
