// Package jinair crawls Jin Air's public fare bucket. Jin Air
// publishes pre-computed daily lowest fares at fare.jinair.com, an
// unauthenticated S3 bucket behind CloudFront, so plain HTTP works.
//
// URL pattern:
//
//	https://fare.jinair.com/{ORIG}{DEST}/{OW|RT}/{COUNTRY}/{CURRENCY}/totalamounts.json
package jinair

import (
	"context"
	"fmt"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
	"github.com/skyfare/skyfare/transport"
)

const Name = "jin_air"

const (
	fareBase    = "https://fare.jinair.com"
	airlineCode = "LJ"
	airlineName = "Jin Air"
)

// Crawler reads Jin Air's daily lowest total fares (fare plus tax).
type Crawler struct {
	http *transport.Direct
	base string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	d, err := transport.NewDirect(transport.DirectOptions{
		Timeout:  cfg.L1Timeout,
		RetryMax: 2,
		Headers:  map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("jinair: %w", err)
	}
	return &Crawler{http: d, base: fareBase}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	raw, err := c.fetchTotalFares(ctx, req.Origin, req.Destination, "KOR", "KRW")
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseTotalFares(raw, req.Origin, req.Destination, "KRW", req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

// fetchTotalFares returns the route's [{YYYYMMDD: price}] entries,
// covering roughly six months ahead.
func (c *Crawler) fetchTotalFares(ctx context.Context, origin, destination, country, currency string) ([]map[string]float64, error) {
	url := fmt.Sprintf("%s/%s%s/OW/%s/%s/totalamounts.json",
		c.base, origin, destination, country, currency)

	var raw []map[string]float64
	if err := c.http.GetJSON(ctx, url, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Crawler) HealthCheck(ctx context.Context) bool {
	raw, err := c.fetchTotalFares(ctx, "ICN", "NRT", "KOR", "KRW")
	return err == nil && len(raw) > 0
}

func (c *Crawler) Close() error { return c.http.Close() }

// parseTotalFares converts fare-bucket entries into synthetic
// calendar rows, one per day with a positive price.
func parseTotalFares(raw []map[string]float64, origin, destination, currency string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, entry := range raw {
		for dateStr, amount := range entry {
			if amount <= 0 {
				continue
			}
			date, err := normalize.ParseCompactDate(dateStr)
			if err != nil {
				logger.Warn("invalid date in fare bucket", "source", Name, "date", dateStr)
				continue
			}

			price := core.NormalizedPrice{
				Amount:    amount,
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				FareClass: "lowest",
				CrawledAt: now,
			}
			flights = append(flights, normalize.SyntheticCalendarFlight(
				airlineCode, airlineName, origin, destination,
				date, price, cabin, core.SourceDirectCrawl))
		}
	}
	return flights
}
