// Package lotpolish crawls LOT Polish Airlines watchlist price boxes.
// The AEM site's low-fare calendar sits behind an Akamai JS challenge,
// but the watchlist boxes endpoint answers to the impersonating
// transport once the homepage has set its cookies.
package lotpolish

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

const Name = "lot_polish"

const (
	baseURL = "https://www.lot.com"
	locale  = "pl/en"
)

type Crawler struct {
	http *transport.Impersonate
	base string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout:  cfg.L2Timeout,
		WarmURLs: []string{baseURL + "/" + locale},
		Headers: map[string]string{
			"Referer":          baseURL + "/" + locale,
			"X-Requested-With": "XMLHttpRequest",
			"Accept":           "application/json",
		},
	})
	return &Crawler{http: im, base: baseURL}, nil
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
	}, func() (*priceBoxesResponse, error) {
		return c.fetchPriceBoxes(ctx, req.Origin, req.Destination)
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parsePriceBoxes(envelope, req.Origin, req.Destination)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) fetchPriceBoxes(ctx context.Context, origin, destination string) (*priceBoxesResponse, error) {
	url := fmt.Sprintf("%s/api/%s/watchlistPriceBoxesSearch.json/%s-%s.json",
		c.base, locale, origin, destination)

	var envelope priceBoxesResponse
	if err := c.http.GetJSON(ctx, url, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// HealthCheck pulls the airport dataset.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	var airports struct {
		Airports []map[string]any `json:"airports"`
	}
	err := c.http.GetJSON(ctx, fmt.Sprintf("%s/api/%s/airports.json", c.base, locale), nil, &airports)
	return err == nil
}

func (c *Crawler) Close() error { return c.http.Close() }
