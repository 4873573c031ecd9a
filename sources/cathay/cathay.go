// Package cathay crawls the Cathay Pacific fare calendar. The booking
// site's instant histogram endpoint returns monthly cheapest return
// fares per route without needing the Akamai warm-up the timetable
// endpoint demands (that endpoint 406s server-side anyway).
package cathay

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const Name = "cathay_pacific"

const (
	mainURL = "https://www.cathaypacific.com"
	apiURL  = "https://api.cathaypacific.com"
	bookURL = "https://book.cathaypacific.com"

	// bookSite is the AEM SITE code for the booking endpoints.
	bookSite = "CBEUCBEU"
)

var cabinCodes = map[core.CabinClass]string{
	core.Economy:        "Y",
	core.PremiumEconomy: "W",
	core.Business:       "J",
	core.First:          "F",
}

// Crawler reads the instant histogram over the impersonating
// transport; the booking domain rejects native Go TLS.
type Crawler struct {
	http    *transport.Impersonate
	bookURL string
	apiURL  string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout: cfg.L2Timeout,
		Headers: map[string]string{
			"Accept":          "application/json, text/plain, */*",
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         mainURL + "/cx/en_US/book-a-trip/timetable.html",
		},
	})
	return &Crawler{http: im, bookURL: bookURL, apiURL: apiURL}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	entries, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 1,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() ([]histogramEntry, error) {
		return c.fetchHistogram(ctx, req.Origin, req.Destination, req.CabinClass)
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseHistogram(entries, req.Origin, req.Destination, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

// fetchHistogram reads the monthly cheapest-fare calendar. Multi-
// airport cities need the airport code, not the metro code.
func (c *Crawler) fetchHistogram(ctx context.Context, origin, destination string, cabin core.CabinClass) ([]histogramEntry, error) {
	q := url.Values{}
	q.Set("ORIGIN", origin)
	q.Set("DESTINATION", destination)
	q.Set("SITE", bookSite)
	q.Set("TYPE", "MTH")
	q.Set("LANGUAGE", "GB")
	if code, ok := cabinCodes[cabin]; ok {
		q.Set("CABIN", code)
	}
	histURL := fmt.Sprintf("%s/CathayPacificV3/dyn/air/api/instant/histogram?%s", c.bookURL, q.Encode())

	var entries []histogramEntry
	if err := c.http.GetJSON(ctx, histURL, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// HealthCheck lists served airports via the lightly protected ibe-od
// endpoint.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	var destinations struct {
		Airports []map[string]any `json:"airports"`
	}
	err := c.http.GetJSON(ctx, c.apiURL+"/ibe-od/v2.0/en_US", nil, &destinations)
	return err == nil && len(destinations.Airports) > 0
}

func (c *Crawler) Close() error { return c.http.Close() }
