// Package turkishair crawls Turkish Airlines through three channels:
// the official developer API when credentials are configured, the
// website JSON API behind TLS impersonation, and a real browser that
// drives the booking form when Akamai blocks the POST endpoints.
package turkishair

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const Name = "turkish_airlines"

const baseURL = "https://www.turkishairlines.com"

// cabinForm maps cabin classes to the website API values. TK sells
// neither premium economy nor first.
var cabinForm = map[core.CabinClass]string{
	core.Economy:        "Economy",
	core.PremiumEconomy: "Economy",
	core.Business:       "Business",
	core.First:          "Business",
}

// New composes the channels in trust order. The official API leads
// only when the flag and credentials are set; the website API and the
// browser remain as fallbacks for Akamai blocks.
func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	var inners []crawler.Crawler
	if cfg.TurkishUseOfficialAPI && cfg.TurkishAPIKey != "" && cfg.TurkishAPISecret != "" {
		official, err := newOfficial(cfg)
		if err != nil {
			return nil, err
		}
		inners = append(inners, official)
	}
	web, err := newWeb(cfg)
	if err != nil {
		return nil, err
	}
	inners = append(inners, web, newBrowser(cfg))
	return crawler.NewFallback(Name, inners...), nil
}

// webCrawler calls the JSON API that the turkishairlines.com SPA uses.
// Akamai Bot Manager intermittently blocks the POST endpoints, so every
// request starts from a fresh fingerprint warmed on the booking page.
type webCrawler struct {
	http *transport.Impersonate
	base string
}

func newWeb(cfg config.CrawlerConfig) (*webCrawler, error) {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout: cfg.L2Timeout,
		WarmURLs: []string{
			baseURL + "/",
			baseURL + "/en-int/flights/booking/",
		},
	})
	return &webCrawler{http: im, base: baseURL}, nil
}

func (c *webCrawler) Name() string { return "turkish_airlines_web" }

func (c *webCrawler) apiHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json, text/plain, */*",
		"x-platform":   "WEB",
		"x-clientid":   uuid.New().String(),
		"x-bfp":        strings.ReplaceAll(uuid.New().String(), "-", ""),
		"x-country":    "int",
	}
}

type odInfo struct {
	OriginAirportCode      string `json:"originAirportCode"`
	DestinationAirportCode string `json:"destinationAirportCode"`
	DepartureDate          string `json:"departureDate"`
	OriginMultiPort        bool   `json:"originMultiPort"`
	DestinationMultiPort   bool   `json:"destinationMultiPort"`
}

type paxType struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

type availabilityPayload struct {
	OriginDestinationInformationList []odInfo  `json:"originDestinationInformationList"`
	SelectedCabinClass               string    `json:"selectedCabinClass"`
	SelectedBookerSearch             string    `json:"selectedBookerSearch"`
	PassengerTypeList                []paxType `json:"passengerTypeList"`
	ModuleType                       string    `json:"moduleType"`
	Responsive                       bool      `json:"responsive,omitempty"`
}

func buildPayload(req core.SearchRequest) availabilityPayload {
	cabin, ok := cabinForm[req.CabinClass]
	if !ok {
		cabin = "Economy"
	}
	var passengers []paxType
	if req.Passengers.Adults > 0 {
		passengers = append(passengers, paxType{Code: "adult", Quantity: req.Passengers.Adults})
	}
	return availabilityPayload{
		OriginDestinationInformationList: []odInfo{{
			OriginAirportCode:      req.Origin,
			DestinationAirportCode: req.Destination,
			DepartureDate:          req.DepartureDate.Format("2006-01-02"),
		}},
		SelectedCabinClass:   cabin,
		SelectedBookerSearch: "ONE_WAY",
		PassengerTypeList:    passengers,
		ModuleType:           "Ticketing",
	}
}

func (c *webCrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	// Full flight matrix first; the fare calendar is a degraded
	// fallback when the matrix comes back empty.
	matrix, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		MaxDelay:   15 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (*webEnvelope, error) {
		payload := buildPayload(req)
		payload.Responsive = true
		return c.post(ctx, "/api/v1/availability/flight-matrix", payload)
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseFlightMatrix(matrix, req.CabinClass)
	if len(flights) == 0 {
		calendar, err := retry.DoValue(ctx, retry.Config{
			MaxRetries: 2,
			BaseDelay:  2 * time.Second,
			MaxDelay:   15 * time.Second,
			RetryIf:    transport.Retryable,
		}, func() (*webEnvelope, error) {
			return c.post(ctx, "/api/v1/availability/cheapest-prices", buildPayload(req))
		})
		if err != nil {
			return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
		}
		flights = parseCheapestPrices(calendar, req.Origin, req.Destination, req.CabinClass)
	}
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *webCrawler) post(ctx context.Context, path string, payload availabilityPayload) (*webEnvelope, error) {
	c.http.Reset()

	var envelope webEnvelope
	if err := c.http.PostJSON(ctx, c.base+path, payload, c.apiHeaders(), &envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		var details []string
		for _, status := range envelope.StatusDetailList {
			if status.Code != "" {
				details = append(details, fmt.Sprintf("%s: %s", status.Code, status.TranslatedMessage))
			}
		}
		return nil, transport.Upstream("%s: %s", path, strings.Join(details, "; "))
	}
	return &envelope, nil
}

// HealthCheck hits the parameters endpoint, which sits outside the
// Akamai sensor requirement.
func (c *webCrawler) HealthCheck(ctx context.Context) bool {
	var result struct {
		Success bool `json:"success"`
	}
	err := c.http.GetJSON(ctx, c.base+"/api/v1/parameters", c.apiHeaders(), &result)
	return err == nil && result.Success
}

func (c *webCrawler) Close() error { return c.http.Close() }
