// Package emirates crawls the public service endpoints behind the
// emirates.com SPA. The featured-fares endpoint returns promotional
// fare cards per origin, so this source emits synthetic calendar rows
// rather than dated flight availability.
package emirates

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

const Name = "emirates"

const baseURL = "https://www.emirates.com"

// Crawler reads Emirates featured fares over the impersonating
// transport. The site rejects plain Go TLS handshakes.
type Crawler struct {
	http *transport.Impersonate
	base string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout:  cfg.L2Timeout,
		WarmURLs: []string{baseURL + "/"},
		Headers: map[string]string{
			"Accept": "application/json",
		},
	})
	return &Crawler{http: im, base: baseURL}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	fares, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		MaxDelay:   15 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (*featuredFaresResponse, error) {
		return c.fetchFeaturedFares(ctx, "en-kr", "kr")
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseFeaturedFares(fares, req.Origin, req.Destination, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) fetchFeaturedFares(ctx context.Context, countryLanguage, geoCountry string) (*featuredFaresResponse, error) {
	url := fmt.Sprintf("%s/service/featured-fares?countryLanguage=%s&geocountrycode=%s&promoted=false&isTerms=true",
		c.base, countryLanguage, geoCountry)

	var envelope featuredFaresResponse
	if err := c.http.GetJSON(ctx, url, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// HealthCheck probes the parameterless GeoIP service endpoint.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	var geo struct {
		Country string `json:"country"`
	}
	if err := c.http.GetJSON(ctx, c.base+"/service/geo", nil, &geo); err != nil {
		return false
	}
	return geo.Country != ""
}

func (c *Crawler) Close() error { return c.http.Close() }
