// Package google crawls Google Flights. The search is serialized into
// the site's protobuf ?tfs= query parameter, the results page is
// fetched with consent cookies pre-set, and the itinerary data the
// page embeds in its scripts is decoded back out of its nested-array
// form. A real browser repeats the fetch when the direct path gets
// served a captcha or an empty shell.
package google

import (
	"context"
	"net/url"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const Name = "google_flights"

const (
	googleOrigin = "https://www.google.com"
	flightsURL   = googleOrigin + "/travel/flights"

	// tfu pins the result view. The value is a constant serialized
	// options message and never varies between searches.
	tfuParam = "EgQIABABIgA"
)

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	return crawler.NewFallback(Name, newPage(cfg), newBrowserPage(cfg)), nil
}

func searchParams(req core.SearchRequest) url.Values {
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	return url.Values{
		"tfs":  {buildTFS(req)},
		"hl":   {"en"},
		"tfu":  {tfuParam},
		"curr": {currency},
	}
}

// pageCrawler fetches the results page over the impersonating client.
type pageCrawler struct {
	http *transport.Impersonate
}

func newPage(cfg config.CrawlerConfig) *pageCrawler {
	return &pageCrawler{
		http: transport.NewImpersonate(transport.ImpersonateOptions{
			Timeout:  cfg.L1Timeout,
			ProxyURL: cfg.L1ProxyURL,
			Headers: map[string]string{
				"Accept": "text/html,application/xhtml+xml",
			},
		}),
	}
}

func (c *pageCrawler) Name() string { return "google_flights_page" }

func (c *pageCrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	page, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		MaxDelay:   15 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() ([]byte, error) {
		return c.fetchPage(ctx, searchParams(req))
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceGoogleProtobuf, err, time.Since(start))
	}

	flights := parsePage(page, req.CabinClass)
	if len(flights) == 0 {
		return core.FailedCrawlResult(core.SourceGoogleProtobuf,
			transport.BadShape("no itineraries in results page"), time.Since(start))
	}
	return core.NewCrawlResult(core.SourceGoogleProtobuf, flights, time.Since(start))
}

func (c *pageCrawler) fetchPage(ctx context.Context, params url.Values) ([]byte, error) {
	c.http.Reset()
	c.http.SetCookies(googleOrigin+"/", sessionCookies())

	resp, err := c.http.Get(ctx, flightsURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *pageCrawler) HealthCheck(ctx context.Context) bool {
	c.http.SetCookies(googleOrigin+"/", sessionCookies())
	resp, err := c.http.Get(ctx, flightsURL+"?hl=en", nil)
	return err == nil && len(resp.Body) > 0
}

func (c *pageCrawler) Close() error { return c.http.Close() }

// sessionCookies combines synthesized consent cookies with any abuse
// exemption found in a local browser profile.
func sessionCookies() []*fhttp.Cookie {
	var cookies []*fhttp.Cookie
	for name, value := range consentCookies("en", time.Now()) {
		cookies = append(cookies, &fhttp.Cookie{
			Name: name, Value: value, Domain: ".google.com", Path: "/",
		})
	}
	if value, ok := abuseExemption(); ok {
		cookies = append(cookies, &fhttp.Cookie{
			Name: "GOOGLE_ABUSE_EXEMPTION", Value: value, Domain: ".google.com", Path: "/",
		})
	}
	return cookies
}
