// Package evaair crawls the EVA Air getBestPrices fare calendar. The
// booking subdomain 403s without cookies from the main site, so the
// transport warms up on the homepage before hitting the handler. The
// server picks the currency from the departure country and returns
// around 300 days of daily lowest one-way fares.
package evaair

import (
	"context"
	"fmt"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const Name = "eva_air"

const (
	homepageURL   = "https://www.evaair.com/en-global/index.html"
	bestPricesURL = "https://booking.evaair.com/flyeva/handler/getBestPrices.ashx"

	// Intervals above 30 cause server errors even though the server
	// returns the full range regardless.
	interval = 30
)

type Crawler struct {
	http       *transport.Impersonate
	bestPrices string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout:  cfg.L2Timeout,
		WarmURLs: []string{homepageURL},
		Headers: map[string]string{
			"Referer":          homepageURL,
			"X-Requested-With": "XMLHttpRequest",
		},
	})
	return &Crawler{http: im, bestPrices: bestPricesURL}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	envelope, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (*bestPricesResponse, error) {
		return c.fetchBestPrices(ctx, req.Origin, req.Destination)
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseBestPrices(envelope, req.Origin, req.Destination, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) fetchBestPrices(ctx context.Context, origin, destination string) (*bestPricesResponse, error) {
	url := fmt.Sprintf("%s?dep=%s&arr=%s&interval=%d", c.bestPrices, origin, destination, interval)

	var envelope bestPricesResponse
	if err := c.http.GetJSON(ctx, url, nil, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Succ {
		return nil, transport.Upstream("eva_air getBestPrices (%s): %s", envelope.Code, envelope.Message)
	}
	return &envelope, nil
}

// HealthCheck expects at least one priced day on TPE-ICN.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	envelope, err := c.fetchBestPrices(ctx, "TPE", "ICN")
	if err != nil {
		return false
	}
	for _, day := range envelope.Data.Data {
		if day.Price > 0 {
			return true
		}
	}
	return false
}

func (c *Crawler) Close() error { return c.http.Close() }
