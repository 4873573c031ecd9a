package airpremia

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/transport"
)

// browserAPICrawler repeats the low-fares requests from inside a real
// browser page that has passed the Cloudflare challenge, inheriting
// its clearance cookie.
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

func (c *browserAPICrawler) Name() string { return "air_premia_browser" }

func (c *browserAPICrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	begin := req.DepartureDate
	end := begin.AddDate(0, 0, searchWindowDays)

	var days []dailyAvailability
	for _, chunk := range monthAlignedChunks(begin, end) {
		url := fmt.Sprintf("%s/api/v1/low-fares?%s", c.base, chunkQuery(req, chunk).Encode())
		body, err := c.browser.PageFetch(ctx, c.base+"/", url, "GET", "",
			map[string]string{"Accept": "application/json"})
		if err != nil {
			return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
		}
		var envelope lowFaresResponse
		if err := json.Unmarshal(body, &envelope); err != nil {
			return core.FailedCrawlResult(core.SourceDirectCrawl,
				transport.BadShape("low-fares chunk: %v", err), time.Since(start))
		}
		for _, result := range envelope.Results {
			days = append(days, result.DailyLowFareAvailabilities...)
		}
	}

	flights := parseLowFares(days, req.Origin, req.Destination, begin, end, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *browserAPICrawler) HealthCheck(ctx context.Context) bool {
	return c.browser.HealthCheck(ctx)
}

func (c *browserAPICrawler) Close() error { return c.browser.Close() }
