package turkishair

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/transport"
)

const bookingURL = baseURL + "/en-int/flights/booking/"

// stealthScript masks the headless indicators Akamai's sensor checks.
const stealthScript = `(() => {
	try {
		Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
	} catch {}
	try {
		window.chrome = window.chrome || {};
		window.chrome.runtime = window.chrome.runtime || {};
	} catch {}
	try {
		Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
	} catch {}
	try {
		Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
	} catch {}
})();`

// browserCrawler drives the booking form in a real browser so the SPA
// itself fires the availability calls with a valid Akamai cookie, then
// reads the intercepted responses.
type browserCrawler struct {
	browser *transport.Browser
}

func newBrowser(cfg config.CrawlerConfig) *browserCrawler {
	return &browserCrawler{
		browser: transport.NewBrowser(transport.BrowserOptions{
			Timeout:  cfg.L3Timeout,
			Headless: cfg.BrowserHeadless,
			ExecPath: cfg.BrowserExecPath,
		}),
	}
}

func (c *browserCrawler) Name() string { return "turkish_airlines_browser" }

func fillPort(placeholder, code string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.Evaluate(fmt.Sprintf(`(() => {
			const input = [...document.querySelectorAll('input')]
				.find(i => (i.placeholder || '').toLowerCase().includes(%q) && i.offsetParent !== null);
			if (input) { input.focus(); input.click(); }
		})()`, placeholder), nil),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.SendKeys(`input:focus`, code, chromedp.ByQuery),
		chromedp.Sleep(2 * time.Second),
		chromedp.Evaluate(fmt.Sprintf(`(() => {
			const option = [...document.querySelectorAll('li, [role="option"]')]
				.find(el => el.textContent.includes(%q) && el.offsetParent !== null);
			if (option) option.click();
		})()`, code), nil),
		chromedp.Sleep(500 * time.Millisecond),
	}
}

func (c *browserCrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	captured, err := c.browser.Run(ctx, transport.Scenario{
		EntryURL:      bookingURL,
		StealthScript: stealthScript,
		ConsentSelectors: []string{
			"#onetrust-accept-btn-handler",
			"[class*='cookie'] button",
		},
		Steps: []chromedp.Action{
			chromedp.Sleep(3 * time.Second),
			// One-way trip type.
			chromedp.Evaluate(`(() => {
				const ow = [...document.querySelectorAll('label, button, [role="radio"]')]
					.find(el => /one.?way/i.test(el.textContent) && el.offsetParent !== null);
				if (ow) ow.click();
			})()`, nil),
			chromedp.Sleep(500 * time.Millisecond),
			fillPort("from", req.Origin),
			fillPort("to", req.Destination),
			// The calendar opens after the destination is picked.
			chromedp.Evaluate(fmt.Sprintf(`(() => {
				const cell = document.querySelector('[data-date=%q]') ||
					[...document.querySelectorAll('td button, [role="gridcell"] button')]
						.find(el => el.textContent.trim() === %q && !el.disabled && el.offsetParent !== null);
				if (cell) cell.click();
			})()`, req.DepartureDate.Format("2006-01-02"), fmt.Sprintf("%d", req.DepartureDate.Day())), nil),
			chromedp.Sleep(500 * time.Millisecond),
			chromedp.Evaluate(`(() => {
				const search = [...document.querySelectorAll('button')]
					.find(b => /search|find flights/i.test(b.textContent) && b.offsetParent !== null);
				if (search) search.click();
			})()`, nil),
		},
		InterceptPatterns: []string{
			"/api/v1/availability/flight-matrix",
			"/api/v1/availability/cheapest-prices",
		},
		ExpectResponses: 1,
		SettleWait:      90 * time.Second,
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	var flights []core.NormalizedFlight
	for _, resp := range captured {
		var envelope webEnvelope
		if err := json.Unmarshal(resp.Body, &envelope); err != nil || !envelope.Success {
			continue
		}
		if matrix := parseFlightMatrix(&envelope, req.CabinClass); len(matrix) > 0 {
			flights = append(flights, matrix...)
			continue
		}
		flights = append(flights, parseCheapestPrices(&envelope, req.Origin, req.Destination, req.CabinClass)...)
	}
	if len(flights) == 0 {
		return core.FailedCrawlResult(core.SourceDirectCrawl,
			transport.BadShape("no availability data in %d intercepted responses", len(captured)),
			time.Since(start))
	}
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *browserCrawler) HealthCheck(ctx context.Context) bool {
	return c.browser.HealthCheck(ctx)
}

func (c *browserCrawler) Close() error { return c.browser.Close() }
