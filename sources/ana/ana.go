// Package ana crawls ANA international fares through a real browser.
// The booking engine on aswbe.ana.co.jp answers 401 to direct calls
// and Akamai Bot Manager fronts the site, so the crawl drives the
// search widget on ana.co.jp and intercepts the JSON the page itself
// receives from the engine.
package ana

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/transport"
)

const Name = "ana"

const (
	intlPageURL   = "https://www.ana.co.jp/en/jp/international/"
	bookingDomain = "aswbe.ana.co.jp"
)

type Crawler struct {
	browser *transport.Browser
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	return &Crawler{
		browser: transport.NewBrowser(transport.BrowserOptions{
			Timeout:  cfg.L3Timeout,
			Headless: cfg.BrowserHeadless,
			ExecPath: cfg.BrowserExecPath,
		}),
	}, nil
}

func (c *Crawler) Name() string { return Name }

// fillAirport opens the widget's airport picker and selects the coded
// airport. The SPA uses button-triggered popups rather than inputs,
// so everything goes through in-page script.
func fillAirport(field, code string) chromedp.Action {
	js := fmt.Sprintf(`(() => {
		const headings = [...document.querySelectorAll('h5, [role="heading"]')];
		const heading = headings.find(h => h.textContent.includes(%q));
		if (!heading) return false;
		const scope = heading.closest('div')?.parentElement || document;
		const button = scope.querySelector('button');
		if (!button) return false;
		button.click();
		return true;
	})()`, field+" Required Input")
	return chromedp.Tasks{
		chromedp.Evaluate(js, nil),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.SendKeys(`input[type="text"], input[type="search"]`, code, chromedp.ByQuery),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(fmt.Sprintf(`(() => {
			const item = [...document.querySelectorAll('li, [class*="airport"]')]
				.find(el => el.textContent.includes(%q) && el.offsetParent !== null);
			if (item) item.click();
		})()`, code), nil),
		chromedp.Sleep(300 * time.Millisecond),
	}
}

func pickDate(date time.Time) chromedp.Action {
	iso := date.Format("2006-01-02")
	return chromedp.Tasks{
		chromedp.Evaluate(fmt.Sprintf(`(() => {
			const cell = document.querySelector('[data-date=%q]') ||
				[...document.querySelectorAll('td button, button')]
					.find(el => el.textContent.trim() === %q && el.offsetParent !== null);
			if (cell) cell.click();
		})()`, iso, fmt.Sprintf("%d", date.Day())), nil),
		chromedp.Sleep(300 * time.Millisecond),
	}
}

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	captured, err := c.browser.Run(ctx, transport.Scenario{
		EntryURL: intlPageURL,
		ConsentSelectors: []string{
			"#onetrust-banner-sdk",
			"[class*='cookie']",
			"[class*='modal-overlay']",
		},
		Steps: []chromedp.Action{
			chromedp.Sleep(2 * time.Second),
			fillAirport("From", req.Origin),
			fillAirport("To", req.Destination),
			pickDate(req.DepartureDate),
			chromedp.Evaluate(`(() => {
				const search = [...document.querySelectorAll('button')]
					.find(b => /search/i.test(b.textContent) && b.offsetParent !== null);
				if (search) search.click();
			})()`, nil),
		},
		InterceptPatterns: []string{bookingDomain},
		ExpectResponses:   1,
		SettleWait:        30 * time.Second,
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	bodies := make([][]byte, 0, len(captured))
	for _, resp := range captured {
		bodies = append(bodies, resp.Body)
	}
	flights := parseAPIResponses(bodies, req.Origin, req.Destination, req.DepartureDate, req.CabinClass)
	if len(flights) == 0 {
		return core.FailedCrawlResult(core.SourceDirectCrawl,
			transport.BadShape("no flight data in %d intercepted responses", len(captured)),
			time.Since(start))
	}
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) HealthCheck(ctx context.Context) bool {
	return c.browser.HealthCheck(ctx)
}

func (c *Crawler) Close() error { return c.browser.Close() }
