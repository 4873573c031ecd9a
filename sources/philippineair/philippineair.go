// Package philippineair crawls the Philippine Airlines flight status
// API, which serves schedule data without fares. The booking API
// behind api-des.philippineairlines.com sits behind Imperva and needs
// a browser-generated X-D-Token, so fares are out of reach here; the
// merge layer fills prices in from other sources.
package philippineair

import (
	"context"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/transport"
)

const Name = "philippine_airlines"

const (
	baseURL    = "https://www.philippineairlines.com"
	statusPath = "/pal/flights/v1/status"

	// referenceNumber tags requests the way the status widget does.
	referenceNumber = "skyfare-pr"
)

type statusRequest struct {
	UniqueReferenceNumber string `json:"UniqueReferenceNumber"`
	RequestDate           string `json:"RequestDate"`
	RetrieveFlights       struct {
		FlightDate  string `json:"flightDate"`
		DepStation  string `json:"depStation,omitempty"`
		ArrStation  string `json:"arrStation,omitempty"`
		RequestType string `json:"requestType"`
	} `json:"retrieveFlights"`
}

type Crawler struct {
	http *transport.Direct
	base string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	direct, err := transport.NewDirect(transport.DirectOptions{
		Timeout:  cfg.L1Timeout,
		RetryMax: 2,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
	})
	if err != nil {
		return nil, err
	}
	return &Crawler{http: direct, base: baseURL}, nil
}

func (c *Crawler) Name() string { return Name }

// Crawl fetches the route's schedule for the requested date. The API
// only looks about fourteen days ahead.
func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	envelope, err := c.fetchRoute(ctx, req.Origin, req.Destination, req.DepartureDate)
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseStatus(envelope, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) fetchRoute(ctx context.Context, origin, destination string, date time.Time) (*statusResponse, error) {
	var payload statusRequest
	payload.UniqueReferenceNumber = referenceNumber
	payload.RequestDate = time.Now().Format("2006-01-02 15:04:05")
	payload.RetrieveFlights.FlightDate = date.Format("20060102")
	payload.RetrieveFlights.DepStation = origin
	payload.RetrieveFlights.ArrStation = destination
	payload.RetrieveFlights.RequestType = "STATION"

	var envelope statusResponse
	if err := c.http.PostJSON(ctx, c.base+statusPath, payload, nil, &envelope); err != nil {
		return nil, err
	}
	if envelope.ReplyType == "error" {
		return nil, transport.Upstream("philippine_airlines status (%s): %s", envelope.Code, envelope.Message)
	}
	return &envelope, nil
}

// HealthCheck queries today's MNL-CEB schedule.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	envelope, err := c.fetchRoute(ctx, "MNL", "CEB", time.Now())
	return err == nil && envelope.Details.Status == "okay"
}

func (c *Crawler) Close() error { return c.http.Close() }
