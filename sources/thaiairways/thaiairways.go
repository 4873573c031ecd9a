// Package thaiairways crawls Thai Airways fares. The EveryMundo
// sputnik tenant is the primary path; when it fails the crawl falls
// back to the site's own popular-fares calendar endpoint, which sits
// behind Cloudflare and needs the impersonating transport.
package thaiairways

import (
	"context"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/sources/sputnik"
	"github.com/skyfare/skyfare/transport"
)

const Name = "thai_airways"

const (
	siteOrigin      = "https://www.thaiairways.com"
	popularFaresURL = siteOrigin + "/common/calendarPricing/popular-fares"
)

// New builds the compound crawler: sputnik first, popular-fares on
// failure.
func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	primary, err := sputnik.New(cfg, sputnik.ThaiAirways)
	if err != nil {
		return nil, err
	}
	return crawler.NewFallback(Name, primary, newPopularFares(cfg)), nil
}

type popularFaresRequest struct {
	JourneyType string   `json:"journeyType"`
	Origins     []string `json:"origins"`
}

// popularFares is the fallback crawler over the calendar-pricing
// endpoint. It returns the cheapest fare per destination and date for
// a given origin.
type popularFares struct {
	http *transport.Impersonate
	base string
}

func newPopularFares(cfg config.CrawlerConfig) *popularFares {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout: cfg.L2Timeout,
		Headers: map[string]string{
			"Accept":          "application/json",
			"source":          "website",
			"hostname":        siteOrigin,
			"accept-language": "en-kr",
			"Referer":         siteOrigin + "/en-kr/",
			"Origin":          siteOrigin,
		},
	})
	return &popularFares{http: im, base: popularFaresURL}
}

func (p *popularFares) Name() string { return "thai_airways_popular_fares" }

func (p *popularFares) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	envelope, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		MaxDelay:   15 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (*popularFaresResponse, error) {
		return p.fetch(ctx, req.Origin)
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parsePopularFares(envelope, req.Origin, req.Destination, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (p *popularFares) fetch(ctx context.Context, origin string) (*popularFaresResponse, error) {
	payload := popularFaresRequest{JourneyType: "ONE_WAY", Origins: []string{origin}}
	var envelope popularFaresResponse
	if err := p.http.PostJSON(ctx, p.base, payload, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// HealthCheck fetches the BKK calendar and requires at least one entry.
func (p *popularFares) HealthCheck(ctx context.Context) bool {
	envelope, err := p.fetch(ctx, "BKK")
	return err == nil && len(envelope.Prices) > 0
}

func (p *popularFares) Close() error { return p.http.Close() }
