package google

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/transport"
)

// browserPageCrawler loads the results page in a real browser. The
// consent cookies are planted from the homepage before navigating to
// the search URL, and the document response of that navigation is the
// HTML handed to the shared parser.
type browserPageCrawler struct {
	browser *transport.Browser
}

func newBrowserPage(cfg config.CrawlerConfig) *browserPageCrawler {
	return &browserPageCrawler{
		browser: transport.NewBrowser(transport.BrowserOptions{
			Timeout:  cfg.L3Timeout,
			ProxyURL: cfg.L1ProxyURL,
			Headless: cfg.BrowserHeadless,
			ExecPath: cfg.BrowserExecPath,
		}),
	}
}

func (c *browserPageCrawler) Name() string { return "google_flights_browser" }

func (c *browserPageCrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request
	searchURL := flightsURL + "?" + searchParams(req).Encode()

	captured, err := c.browser.Run(ctx, transport.Scenario{
		EntryURL: googleOrigin + "/",
		Steps: []chromedp.Action{
			plantCookies(consentCookies("en", time.Now())),
			chromedp.Navigate(searchURL),
			chromedp.WaitReady("body", chromedp.ByQuery),
		},
		InterceptPatterns: []string{"/travel/flights"},
		ExpectResponses:   1,
		SettleWait:        20 * time.Second,
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceGoogleProtobuf, err, time.Since(start))
	}

	for _, page := range captured {
		if flights := parsePage(page.Body, req.CabinClass); len(flights) > 0 {
			return core.NewCrawlResult(core.SourceGoogleProtobuf, flights, time.Since(start))
		}
	}
	return core.FailedCrawlResult(core.SourceGoogleProtobuf,
		transport.BadShape("no itineraries in rendered page"), time.Since(start))
}

// plantCookies sets consent cookies on the google.com session the tab
// already holds, so the follow-up navigation skips the interstitial.
func plantCookies(cookies map[string]string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		expires := cdp.TimeSinceEpoch(time.Now().AddDate(0, 6, 0))
		for name, value := range cookies {
			err := network.SetCookie(name, value).
				WithDomain(".google.com").
				WithPath("/").
				WithExpires(&expires).
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *browserPageCrawler) HealthCheck(ctx context.Context) bool {
	return c.browser.HealthCheck(ctx)
}

func (c *browserPageCrawler) Close() error { return c.browser.Close() }
