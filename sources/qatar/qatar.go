// Package qatar crawls Qatar Airways through a real browser. The
// booking widget on qatarairways.com is an Angular SPA rendered inside
// a Shadow DOM, but the book.html page accepts URL parameters that
// pre-fill the search form, so the crawl navigates straight to a
// parameterized URL, submits, and intercepts the offer JSON the page
// receives from the booking backend.
package qatar

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

const Name = "qatar_airways"

const baseURL = "https://www.qatarairways.com"

// bookingCodes maps cabin classes to the widget's bookingClass URL
// parameter.
var bookingCodes = map[core.CabinClass]string{
	core.Economy:        "E",
	core.PremiumEconomy: "E",
	core.Business:       "J",
	core.First:          "F",
}

// interceptPatterns match the API hosts and paths the booking widget
// has been observed to call for offer data.
var interceptPatterns = []string{
	"qoreservices",
	"booking.qatarairways.com",
	"/api/offer/",
	"/api/flight/",
	"/api/search/",
	"flightoffers",
	"availability",
	"fareSelection",
}

// antiRedirectScript blocks partner ad scripts from navigating the tab
// off qatarairways.com and hides the webdriver flag.
const antiRedirectScript = `(() => {
	const blocked = (url) => {
		if (!url) return false;
		const s = String(url);
		return s.length > 0
			&& !s.includes('qatarairways.com')
			&& !s.startsWith('about:')
			&& !s.startsWith('javascript:')
			&& !s.startsWith('blob:');
	};
	try {
		const orig = Object.getOwnPropertyDescriptor(Location.prototype, 'href');
		if (orig && orig.set) {
			Object.defineProperty(Location.prototype, 'href', {
				get: orig.get,
				set(val) { if (!blocked(val)) orig.set.call(this, val); },
			});
		}
	} catch {}
	for (const method of ['assign', 'replace']) {
		try {
			const orig = Location.prototype[method];
			Location.prototype[method] = function(url) {
				if (!blocked(url)) return orig.call(this, url);
			};
		} catch {}
	}
	try {
		const origOpen = window.open;
		window.open = function(url) {
			return blocked(url) ? null : origOpen.apply(this, arguments);
		};
	} catch {}
	try {
		Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
	} catch {}
})();`

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

func searchURL(req core.SearchRequest) string {
	bookingClass, ok := bookingCodes[req.CabinClass]
	if !ok {
		bookingClass = "E"
	}
	currency := req.Currency
	if currency == "" {
		currency = "KRW"
	}
	return fmt.Sprintf(
		"%s/en/book.html?widget=QR&searchType=F&addTax498=1&flexibleDate=Off"+
			"&bookingClass=%s&tripType=O&from=%s&to=%s&departing=%s"+
			"&adults=%d&children=%d&infants=%d&teenager=0&ofw=0&promoCode=&currency=%s",
		baseURL, bookingClass, req.Origin, req.Destination,
		req.DepartureDate.Format("2006-01-02"),
		req.Passengers.Adults, req.Passengers.Children, req.Passengers.InfantsLap,
		currency,
	)
}

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	captured, err := c.browser.Run(ctx, transport.Scenario{
		EntryURL:      searchURL(req),
		StealthScript: antiRedirectScript,
		ConsentSelectors: []string{
			"#onetrust-accept-btn-handler",
			"[class*='cookie'] button",
		},
		Steps: []chromedp.Action{
			// Wait for the Angular widget to hydrate the pre-filled form.
			chromedp.Sleep(8 * time.Second),
			chromedp.Evaluate(`(() => {
				const search = [...document.querySelectorAll('button')]
					.find(b => /search flights/i.test(b.textContent) && b.offsetParent !== null);
				if (search) search.click();
			})()`, nil),
		},
		InterceptPatterns: interceptPatterns,
		ExpectResponses:   1,
		SettleWait:        60 * time.Second,
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	bodies := make([][]byte, 0, len(captured))
	for _, resp := range captured {
		bodies = append(bodies, resp.Body)
	}
	flights := parseIntercepted(bodies, req.Origin, req.Destination, req.CabinClass)
	if len(flights) == 0 {
		return core.FailedCrawlResult(core.SourceDirectCrawl,
			transport.BadShape("no offer data in %d intercepted responses", len(captured)),
			time.Since(start))
	}
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) HealthCheck(ctx context.Context) bool {
	return c.browser.HealthCheck(ctx)
}

func (c *Crawler) Close() error { return c.browser.Close() }
