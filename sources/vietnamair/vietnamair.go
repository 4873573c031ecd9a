// Package vietnamair crawls the Vietnam Airlines integration
// middleware. Two public endpoints complement each other: the
// schedule table carries flight identity and times but no fares, and
// the air-best-price calendar carries the lowest fare per departure
// date. The crawl fetches both and attaches calendar prices to the
// day's schedule rows.
package vietnamair

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const Name = "vietnam_airlines"

const baseURL = "https://integration-middleware-website.vietnamairlines.com/api/v1"

// bestPriceRange is the number of days the fare calendar scans ahead.
const bestPriceRange = 62

// airportCountries resolves the location parameter that controls
// pricing currency; it must match the departure country for fares to
// come back. Unknown airports fall back to VN.
var airportCountries = map[string]string{
	"SGN": "VN", "HAN": "VN", "DAD": "VN", "CXR": "VN", "PQC": "VN",
	"HPH": "VN", "HUI": "VN", "DLI": "VN",
	"ICN": "KR", "GMP": "KR",
	"NRT": "JP", "HND": "JP", "KIX": "JP", "NGO": "JP", "FUK": "JP",
	"SIN": "SG", "BKK": "TH", "PNH": "KH", "VTE": "LA", "RGN": "MM",
	"KUL": "MY", "PEK": "CN", "PVG": "CN", "CAN": "CN", "TPE": "TW",
	"CDG": "FR", "LHR": "GB", "FRA": "DE",
	"SYD": "AU", "MEL": "AU", "SFO": "US",
}

func locationForAirport(code string) string {
	if loc, ok := airportCountries[strings.ToUpper(code)]; ok {
		return loc
	}
	return "VN"
}

type bestPriceRequest struct {
	Route struct {
		OriginLocationCode      string `json:"originLocationCode"`
		DestinationLocationCode string `json:"destinationLocationCode"`
		DepartureDateTime       string `json:"departureDateTime"`
	} `json:"route"`
	TripDetails struct {
		RangeOfDeparture int `json:"rangeOfDeparture"`
	} `json:"tripDetails"`
	Location string `json:"location"`
}

// Crawler talks to the middleware over the impersonating transport as
// a precaution; the middleware itself does not enforce fingerprints,
// unlike the Imperva-fronted booking host.
type Crawler struct {
	http *transport.Impersonate
	base string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout: cfg.L2Timeout,
		Headers: map[string]string{"Accept": "application/json"},
	})
	return &Crawler{http: im, base: baseURL}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request
	targetDate := req.DepartureDate.Format("2006-01-02")

	schedule, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (*scheduleResponse, error) {
		return c.fetchSchedule(ctx, req.Origin, req.Destination, targetDate)
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseSchedule(schedule, targetDate, req.CabinClass)

	// Fares come from a separate calendar; schedule rows are still
	// worth emitting when it fails.
	prices, err := c.fetchBestPrices(ctx, req.Origin, req.Destination, targetDate)
	if err != nil {
		logger.Warn("best-price calendar unavailable, emitting schedule only",
			"source", Name, "error", err)
	} else {
		attachPrices(flights, parseBestPrices(prices), targetDate)
	}

	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) fetchSchedule(ctx context.Context, origin, destination, date string) (*scheduleResponse, error) {
	url := fmt.Sprintf("%s/public/flight/schedule-table?originLocationCode=%s&destinationLocationCode=%s&departureDate=%s",
		c.base, origin, destination, date)
	var envelope scheduleResponse
	if err := c.http.GetJSON(ctx, url, nil, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, transport.Upstream("vietnam_airlines schedule-table: %s", envelope.Message)
	}
	return &envelope, nil
}

func (c *Crawler) fetchBestPrices(ctx context.Context, origin, destination, date string) (*bestPriceResponse, error) {
	var payload bestPriceRequest
	payload.Route.OriginLocationCode = strings.ToUpper(origin)
	payload.Route.DestinationLocationCode = strings.ToUpper(destination)
	payload.Route.DepartureDateTime = date
	payload.TripDetails.RangeOfDeparture = bestPriceRange
	payload.Location = locationForAirport(origin)

	var envelope bestPriceResponse
	if err := c.http.PostJSON(ctx, c.base+"/public/booking/air-best-price", payload, nil, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, transport.Upstream("vietnam_airlines air-best-price: %s", envelope.Message)
	}
	return &envelope, nil
}

// HealthCheck probes the parameterless country-codes endpoint.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	resp, err := c.http.Get(ctx, c.base+"/public/country-codes", nil)
	return err == nil && resp.StatusCode == 200
}

func (c *Crawler) Close() error { return c.http.Close() }
