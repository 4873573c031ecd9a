// Package jejuair crawls the Jeju Air lowest-fare calendar behind
// Akamai Bot Manager on sec.jejuair.net. The session resets before
// every search so Akamai never gets a stale fingerprint to track.
package jejuair

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

const Name = "jeju_air"

const (
	baseURL      = "https://sec.jejuair.net"
	calendarPath = "/ko/ibe/booking/searchlowestFareCalendar.json"
	stationsPath = "/ko/ibe/booking/selectDepartureStations.json"

	channelCode = "WPC"
	pageID      = "0000000294"
)

type tripRoute struct {
	SearchStartDate    string `json:"searchStartDate"`
	OriginAirport      string `json:"originAirport"`
	DestinationAirport string `json:"destinationAirport"`
}

type paxSpec struct {
	Type  string `json:"type"`
	Count string `json:"count"`
}

type calendarRequest struct {
	TripRoute          []tripRoute `json:"tripRoute"`
	Passengers         []paxSpec   `json:"passengers"`
	IncludeTaxesAndFee bool        `json:"includeTaxesAndFee"`
}

type Crawler struct {
	http *transport.Impersonate
	base string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout: cfg.L2Timeout,
		Headers: map[string]string{
			"Channel-Code": channelCode,
			"User-Id":      "",
			"User-Name":    "",
			"Origin":       "https://www.jejuair.net",
			"Referer":      "https://www.jejuair.net/",
		},
	})
	return &Crawler{http: im, base: baseURL}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	envelope, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   15 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (*calendarResponse, error) {
		return c.fetchLowestFares(ctx, req.Origin, req.Destination,
			req.DepartureDate.Format("2006-01-02"), req.Passengers.Adults)
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseLowestFares(envelope, req.Origin, req.Destination, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

// fetchLowestFares posts the JSON search wrapped in a form field, the
// way the booking widget does it.
func (c *Crawler) fetchLowestFares(ctx context.Context, origin, destination, startDate string, adults int) (*calendarResponse, error) {
	c.http.Reset()

	payload := calendarRequest{
		TripRoute: []tripRoute{{
			SearchStartDate:    startDate,
			OriginAirport:      origin,
			DestinationAirport: destination,
		}},
		Passengers:         []paxSpec{{Type: "ADT", Count: strconv.Itoa(adults)}},
		IncludeTaxesAndFee: true,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"lowestFareCalendar": {string(encoded)},
		"pageId":             {pageID},
	}

	var envelope calendarResponse
	if err := c.http.PostForm(ctx, c.base+calendarPath, form, nil, &envelope); err != nil {
		return nil, err
	}
	if envelope.Code != "0000" {
		return nil, transport.Upstream("jeju_air lowestFareCalendar (%s): %s", envelope.Code, envelope.Message)
	}
	return &envelope, nil
}

// HealthCheck lists departure stations.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	form := url.Values{
		"bookType":    {"Common"},
		"cultureCode": {"ko-KR"},
		"pageId":      {pageID},
	}
	var envelope struct {
		Code string `json:"code"`
	}
	err := c.http.PostForm(ctx, c.base+stationsPath, form, nil, &envelope)
	return err == nil && envelope.Code == "0000"
}

func (c *Crawler) Close() error { return c.http.Close() }
