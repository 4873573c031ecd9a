// Package twayair crawls T'way Air daily lowest fares. Akamai guards
// the consumer site, but the travel agency portal exposes the same
// fare API with only a session cookie and a CSRF token scraped from
// the booking page.
package twayair

import (
	"context"
	"net/url"
	"regexp"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const Name = "tway_air"

const (
	baseURL       = "https://tagency.twayair.com"
	itineraryPath = "/app/booking/searchItinerary"
	lowestPath    = "/ajax/booking/getLowestFare"
)

var csrfPattern = regexp.MustCompile(`<meta\s+name="_csrf"\s+content="([^"]+)"`)

type Crawler struct {
	http *transport.Impersonate
	base string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout: cfg.L2Timeout,
	})
	return &Crawler{http: im, base: baseURL}, nil
}

func (c *Crawler) Name() string { return Name }

// csrfToken loads the booking page, which both sets the session
// cookie and embeds the token in a meta tag.
func (c *Crawler) csrfToken(ctx context.Context) (string, error) {
	resp, err := c.http.Get(ctx, c.base+itineraryPath, nil)
	if err != nil {
		return "", err
	}
	m := csrfPattern.FindSubmatch(resp.Body)
	if m == nil {
		return "", transport.BadShape("csrf token not found in booking page")
	}
	return string(m[1]), nil
}

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	tripType := "OW"
	if req.TripType == core.RoundTrip {
		tripType = "RT"
	}
	currency := req.Currency
	if currency == "" {
		currency = "KRW"
	}

	fares, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (*lowestFareResponse, error) {
		return c.fetchLowestFares(ctx, req.Origin, req.Destination, tripType, currency)
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseLowestFares(fares, req.Origin, req.Destination, req.CabinClass, currency)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) fetchLowestFares(ctx context.Context, origin, destination, tripType, currency string) (*lowestFareResponse, error) {
	// A fresh session per search keeps the portal from tracking one.
	c.http.Reset()
	csrf, err := c.csrfToken(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"tripType":            {tripType},
		"bookingType":         {"PASSENGER"},
		"currency":            {currency},
		"depAirport":          {origin},
		"arrAirport":          {destination},
		"baseDeptAirportCode": {origin},
	}
	headers := map[string]string{
		"X-CSRF-TOKEN":     csrf,
		"X-Requested-With": "XMLHttpRequest",
	}

	var envelope lowestFareResponse
	if err := c.http.PostForm(ctx, c.base+lowestPath, form, headers, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// HealthCheck expects at least one one-way fare on ICN-NRT.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	fares, err := c.fetchLowestFares(ctx, "ICN", "NRT", "OW", "KRW")
	return err == nil && len(fares.OneWay) > 0
}

func (c *Crawler) Close() error { return c.http.Close() }
