// Package airseoul crawls Air Seoul's booking API. Cloudflare on
// flyairseoul.com blocks non-browser TLS intermittently, so the
// adapter is a two-stage compound: the impersonating transport first,
// and a real browser that solves the Turnstile challenge and issues
// the same call via in-page fetch when the first stage is blocked.
package airseoul

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const Name = "air_seoul"

const (
	baseURL    = "https://flyairseoul.com"
	mainPath   = "/I/KO/main.do"
	searchPath = "/I/KO/searchFlightInfo.do"
)

// New builds the compound crawler: direct API first, browser fallback.
func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	api, err := newAPI(cfg)
	if err != nil {
		return nil, err
	}
	return crawler.NewFallback(Name, api, newBrowserAPI(cfg)), nil
}

func searchForm(req core.SearchRequest) url.Values {
	tripType := "OW"
	if req.TripType == core.RoundTrip {
		tripType = "RT"
	}
	return url.Values{
		"gubun":      {"I"},
		"depAirport": {req.Origin},
		"arrAirport": {req.Destination},
		"depDate":    {req.DepartureDate.Format("20060102")},
		"tripType":   {tripType},
		"adtPaxCnt":  {strconv.Itoa(req.Passengers.Adults)},
		"chdPaxCnt":  {strconv.Itoa(req.Passengers.Children)},
		"infPaxCnt":  {strconv.Itoa(req.Passengers.InfantsSeat + req.Passengers.InfantsLap)},
	}
}

// apiCrawler posts the form-encoded search over the impersonating
// transport. JSON payloads get code 9999 back, so it is forms only.
type apiCrawler struct {
	http *transport.Impersonate
	base string
}

func newAPI(cfg config.CrawlerConfig) (*apiCrawler, error) {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout:  cfg.L2Timeout,
		WarmURLs: []string{baseURL + mainPath},
		Headers: map[string]string{
			"Accept":           "application/json, text/javascript, */*; q=0.01",
			"X-Requested-With": "XMLHttpRequest",
		},
	})
	return &apiCrawler{http: im, base: baseURL}, nil
}

func (c *apiCrawler) Name() string { return "air_seoul_api" }

func (c *apiCrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	envelope, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		MaxDelay:   20 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (*flightInfoResponse, error) {
		var envelope flightInfoResponse
		if err := c.http.PostForm(ctx, c.base+searchPath, searchForm(req), nil, &envelope); err != nil {
			// A fresh session sometimes passes where the tracked one
			// got blocked.
			c.http.Reset()
			return nil, err
		}
		if envelope.Code != "" && envelope.Code != "0000" {
			return nil, transport.Upstream("air_seoul searchFlightInfo: code=%s", envelope.Code)
		}
		return &envelope, nil
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseFlightInfo(envelope, req.Origin, req.Destination, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

// HealthCheck posts the parameterless member-limit lookup.
func (c *apiCrawler) HealthCheck(ctx context.Context) bool {
	var result map[string]any
	err := c.http.PostForm(ctx, c.base+"/I/KO/searchMemberLimitInfo.do", url.Values{}, nil, &result)
	if err != nil {
		return false
	}
	_, ok := result["memberLimit"]
	return ok
}

func (c *apiCrawler) Close() error { return c.http.Close() }

// browserAPICrawler repeats the search from inside a real page, where
// Cloudflare sees the TLS stack that solved its challenge.
type browserAPICrawler struct {
	browser *transport.Browser
	base    string
}

func newBrowserAPI(cfg config.CrawlerConfig) *browserAPICrawler {
	return &browserAPICrawler{
		browser: transport.NewBrowser(transport.BrowserOptions{
			Timeout:  cfg.L3Timeout,
			Headless: cfg.BrowserHeadless,
			ExecPath: cfg.BrowserExecPath,
		}),
		base: baseURL,
	}
}

func (c *browserAPICrawler) Name() string { return "air_seoul_browser" }

func (c *browserAPICrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	body, err := c.browser.PageFetch(ctx, c.base, c.base+searchPath, "POST",
		searchForm(req).Encode(), map[string]string{
			"Content-Type":     "application/x-www-form-urlencoded; charset=UTF-8",
			"X-Requested-With": "XMLHttpRequest",
			"Accept":           "application/json, text/javascript, */*; q=0.01",
		})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	var envelope flightInfoResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl,
			transport.BadShape("decode searchFlightInfo: %v", err), time.Since(start))
	}
	if envelope.Code != "" && envelope.Code != "0000" {
		return core.FailedCrawlResult(core.SourceDirectCrawl,
			transport.Upstream("air_seoul searchFlightInfo: code=%s", envelope.Code), time.Since(start))
	}

	flights := parseFlightInfo(&envelope, req.Origin, req.Destination, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *browserAPICrawler) HealthCheck(ctx context.Context) bool {
	return c.browser.HealthCheck(ctx)
}

func (c *browserAPICrawler) Close() error { return c.browser.Close() }
