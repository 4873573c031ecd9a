// Package singaporeair crawls the Singapore Airlines NDC flight
// availability API on the developer portal. Auth is a static API key
// in the apikey header; each request carries a fresh client UUID.
package singaporeair

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/transport"
)

const Name = "singapore_airlines"

const baseURL = "https://developer.singaporeair.com"

// cabinCodes maps cabin classes to the SQ request codes.
var cabinCodes = map[core.CabinClass]string{
	core.Economy:        "Y",
	core.PremiumEconomy: "S",
	core.Business:       "J",
	core.First:          "F",
}

type availabilityRequest struct {
	ClientUUID string `json:"clientUUID"`
	Request    struct {
		ItineraryDetails []itineraryDetail `json:"itineraryDetails"`
	} `json:"request"`
}

type itineraryDetail struct {
	OriginAirportCode      string `json:"originAirportCode"`
	DestinationAirportCode string `json:"destinationAirportCode"`
	DepartureDate          string `json:"departureDate"`
	CabinClass             string `json:"cabinClass"`
	AdultCount             int    `json:"adultCount"`
	ChildCount             int    `json:"childCount"`
	InfantCount            int    `json:"infantCount"`
}

// Crawler searches the SQ NDC availability endpoint.
type Crawler struct {
	http *transport.Direct
	base string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	if cfg.SingaporeAPIKey == "" {
		return nil, fmt.Errorf("singapore_airlines: CRAWLER_SINGAPORE_API_KEY is not set")
	}
	d, err := transport.NewDirect(transport.DirectOptions{
		Timeout:  cfg.L1Timeout,
		RetryMax: 2,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"apikey":       cfg.SingaporeAPIKey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("singapore_airlines: %w", err)
	}
	return &Crawler{http: d, base: baseURL}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	envelope, err := c.fetchAvailability(ctx, req)
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseAvailability(envelope, req.Origin, req.Destination, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) fetchAvailability(ctx context.Context, req core.SearchRequest) (*availabilityResponse, error) {
	cabin, ok := cabinCodes[req.CabinClass]
	if !ok {
		cabin = "Y"
	}

	var payload availabilityRequest
	payload.ClientUUID = uuid.New().String()
	payload.Request.ItineraryDetails = []itineraryDetail{{
		OriginAirportCode:      req.Origin,
		DestinationAirportCode: req.Destination,
		DepartureDate:          req.DepartureDate.Format("2006-01-02"),
		CabinClass:             cabin,
		AdultCount:             req.Passengers.Adults,
		ChildCount:             req.Passengers.Children,
		InfantCount:            req.Passengers.InfantsSeat + req.Passengers.InfantsLap,
	}}

	var envelope availabilityResponse
	if err := c.http.PostJSON(ctx, c.base+"/flightavailability/get", payload, nil, &envelope); err != nil {
		return nil, err
	}
	if envelope.Status != "SUCCESS" {
		return nil, transport.Upstream(fmt.Sprintf("singapore_airlines: %s - %s", envelope.Code, envelope.Message))
	}
	return &envelope, nil
}

// HealthCheck runs a minimal SIN-KUL availability search.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	probe := core.NewSearchRequest("SIN", "KUL", time.Now().AddDate(0, 0, 30))
	probe.Currency = "SGD"
	_, err := c.fetchAvailability(ctx, probe)
	return err == nil
}

func (c *Crawler) Close() error { return c.http.Close() }
