// Package malaysiaair crawls the Malaysia Airlines low-fare calendar.
// The AEM Sling servlet behind the booking widget's date picker serves
// about thirty days of daily lowest fares per route with no auth, so
// the adapter only carries a polite Referer and the impersonating
// transport in case Cloudflare tightens up.
package malaysiaair

import (
	"context"
	"net/url"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const Name = "malaysia_airlines"

const (
	baseURL     = "https://www.malaysiaairlines.com"
	lowFarePath = "/bin/mh/revamp/lowFares"
	referer     = baseURL + "/my/en/home.html"
)

type Crawler struct {
	http *transport.Impersonate
	base string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout: cfg.L2Timeout,
		Headers: map[string]string{
			"Accept":  "application/json",
			"Referer": referer,
		},
	})
	return &Crawler{http: im, base: baseURL}, nil
}

func (c *Crawler) Name() string { return Name }

// Crawl fetches the one-way calendar, or the return variant (outbound
// fare plus per-day return-leg fares) for round trips.
func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request
	date := req.DepartureDate.Format("020106")

	entries, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() ([]fareEntry, error) {
		if req.TripType == core.RoundTrip {
			return c.fetchFares(ctx, req.Origin, req.Destination, url.Values{"departdate": {date}, "fromDepartDate": {"true"}})
		}
		return c.fetchFares(ctx, req.Origin, req.Destination, url.Values{"firstdate": {date}})
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	var flights []core.NormalizedFlight
	if req.TripType == core.RoundTrip {
		flights = parseReturnFares(entries, req.Origin, req.Destination, req.CabinClass)
	} else {
		flights = parseOnewayFares(entries, req.Origin, req.Destination, req.CabinClass)
	}
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) fetchFares(ctx context.Context, origin, destination string, params url.Values) ([]fareEntry, error) {
	params.Set("origin", origin)
	params.Set("destination", destination)
	params.Set("paymentType", "Cash")

	var entries []fareEntry
	if err := c.http.GetJSON(ctx, c.base+lowFarePath+"?"+params.Encode(), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// HealthCheck probes a staple domestic route thirty days out.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	date := time.Now().AddDate(0, 0, 30).Format("020106")
	entries, err := c.fetchFares(ctx, "KUL", "SIN", url.Values{"firstdate": {date}})
	return err == nil && len(entries) > 0
}

func (c *Crawler) Close() error { return c.http.Close() }
