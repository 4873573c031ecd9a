// Package airpremia crawls Air Premia's daily low-fare calendar.
// Cloudflare fronts www.airpremia.com, so the primary crawler rides
// the impersonating transport warmed on the homepage, with a browser
// fallback that issues the same request from inside a cleared page.
//
// The low-fares API only accepts month-aligned ranges: the end date
// must be the last day of its month and one request may span at most
// two consecutive months. Arbitrary windows are split into compliant
// chunks and merged back.
package airpremia

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const Name = "air_premia"

const (
	baseURL = "https://www.airpremia.com"
	// searchWindowDays is how far past the departure date the fare
	// calendar is pulled.
	searchWindowDays = 30
)

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	api, err := newAPI(cfg)
	if err != nil {
		return nil, err
	}
	return crawler.NewFallback(Name, api, newBrowserAPI(cfg)), nil
}

type dateChunk struct {
	begin time.Time
	end   time.Time
}

func lastDayOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// monthAlignedChunks splits [begin, end] into ranges the API accepts.
func monthAlignedChunks(begin, end time.Time) []dateChunk {
	var chunks []dateChunk
	cursor := begin

	for !cursor.After(end) {
		eom := lastDayOfMonth(cursor)
		if !eom.Before(end) {
			chunks = append(chunks, dateChunk{begin: cursor, end: eom})
			break
		}
		nextEOM := lastDayOfMonth(eom.AddDate(0, 0, 1))
		chunks = append(chunks, dateChunk{begin: cursor, end: nextEOM})
		if !nextEOM.Before(end) {
			break
		}
		cursor = nextEOM.AddDate(0, 0, 1)
	}
	return chunks
}

func chunkQuery(req core.SearchRequest, chunk dateChunk) url.Values {
	tripType := "OW"
	if req.TripType == core.RoundTrip {
		tripType = "RT"
	}
	adults := req.Passengers.Adults
	if adults == 0 {
		adults = 1
	}
	return url.Values{
		"origin":      {req.Origin},
		"destination": {req.Destination},
		"beginDate":   {chunk.begin.Format("2006-01-02")},
		"endDate":     {chunk.end.Format("2006-01-02")},
		"tripType":    {tripType},
		"adtCount":    {strconv.Itoa(adults)},
	}
}

// apiCrawler is the direct path over Chrome TLS impersonation.
type apiCrawler struct {
	http *transport.Impersonate
	base string
}

func newAPI(cfg config.CrawlerConfig) (*apiCrawler, error) {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout:  cfg.L2Timeout,
		WarmURLs: []string{baseURL + "/"},
		Headers: map[string]string{
			"Accept":  "application/json",
			"Referer": baseURL + "/",
		},
	})
	return &apiCrawler{http: im, base: baseURL}, nil
}

func (c *apiCrawler) Name() string { return "air_premia_api" }

func (c *apiCrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	begin := req.DepartureDate
	end := begin.AddDate(0, 0, searchWindowDays)

	var days []dailyAvailability
	for _, chunk := range monthAlignedChunks(begin, end) {
		envelope, err := retry.DoValue(ctx, retry.Config{
			MaxRetries: 3,
			BaseDelay:  2 * time.Second,
			MaxDelay:   20 * time.Second,
			RetryIf:    transport.Retryable,
		}, func() (*lowFaresResponse, error) {
			return c.fetchChunk(ctx, req, chunk)
		})
		if err != nil {
			return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
		}
		for _, result := range envelope.Results {
			days = append(days, result.DailyLowFareAvailabilities...)
		}
	}

	flights := parseLowFares(days, req.Origin, req.Destination, begin, end, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *apiCrawler) fetchChunk(ctx context.Context, req core.SearchRequest, chunk dateChunk) (*lowFaresResponse, error) {
	// Fresh fingerprint per chunk keeps Cloudflare from correlating
	// the session.
	c.http.Reset()

	var envelope lowFaresResponse
	url := fmt.Sprintf("%s/api/v1/low-fares?%s", c.base, chunkQuery(req, chunk).Encode())
	if err := c.http.GetJSON(ctx, url, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// HealthCheck pulls the active airport list, which sits outside the
// Cloudflare challenge.
func (c *apiCrawler) HealthCheck(ctx context.Context) bool {
	var airports []map[string]any
	err := c.http.GetJSON(ctx, c.base+"/api/v1/airports?isActive=true", nil, &airports)
	return err == nil && len(airports) > 0
}

func (c *apiCrawler) Close() error { return c.http.Close() }
