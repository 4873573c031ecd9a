package afklm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const (
	klmBaseURL = "https://www.klm.com"
	gqlPath    = "/gql/v1"

	// Persisted query hash captured from the klm.com Aviato SPA.
	searchOffersHash = "b56e0be21c30edf8b4a61f3909f7d31960163b5b123ae681e06d7dd7c26f4fc3"
)

// gqlCabins maps cabin classes to the Aviato commercial cabin values.
var gqlCabins = map[core.CabinClass]string{
	core.Economy:        "ECONOMY",
	core.PremiumEconomy: "PREMIUM",
	core.Business:       "BUSINESS",
	core.First:          "FIRST",
}

// graphqlCrawler executes the SearchResultAvailableOffersQuery
// persisted query via an in-page fetch on klm.com. Direct POSTs to
// /gql/v1 fail Akamai's TLS fingerprint check even under
// impersonation, so the request has to originate from the page.
type graphqlCrawler struct {
	browser *transport.Browser
}

func newGraphQL(cfg config.CrawlerConfig) *graphqlCrawler {
	return &graphqlCrawler{
		browser: transport.NewBrowser(transport.BrowserOptions{
			Timeout:  cfg.L3Timeout,
			Headless: cfg.BrowserHeadless,
			ExecPath: cfg.BrowserExecPath,
		}),
	}
}

func (c *graphqlCrawler) Name() string { return "af_klm_graphql" }

type gqlEndpoint struct {
	Code string `json:"code"`
	Type string `json:"type"`
}

type gqlConnection struct {
	Origin        gqlEndpoint `json:"origin"`
	Destination   gqlEndpoint `json:"destination"`
	DepartureDate string      `json:"departureDate"`
}

type gqlPassenger struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

type offersRequestBody struct {
	CommercialCabins     []string        `json:"commercialCabins"`
	Passengers           []gqlPassenger  `json:"passengers"`
	RequestedConnections []gqlConnection `json:"requestedConnections"`
	BookingFlow          string          `json:"bookingFlow"`
}

type offersVariables struct {
	ActiveConnectionIndex     int               `json:"activeConnectionIndex"`
	BookingFlow               string            `json:"bookingFlow"`
	AvailableOfferRequestBody offersRequestBody `json:"availableOfferRequestBody"`
	SearchStateUUID           string            `json:"searchStateUuid"`
}

type persistedQuery struct {
	Version    int    `json:"version"`
	SHA256Hash string `json:"sha256Hash"`
}

type gqlRequest struct {
	OperationName string          `json:"operationName"`
	Variables     offersVariables `json:"variables"`
	Extensions    struct {
		PersistedQuery persistedQuery `json:"persistedQuery"`
	} `json:"extensions"`
}

func buildOffersRequest(req core.SearchRequest) gqlRequest {
	cabin, ok := gqlCabins[req.CabinClass]
	if !ok {
		cabin = "ECONOMY"
	}
	passengers := make([]gqlPassenger, 0, req.Passengers.Adults)
	for i := 0; i < req.Passengers.Adults; i++ {
		passengers = append(passengers, gqlPassenger{ID: i + 1, Type: "ADT"})
	}

	out := gqlRequest{
		OperationName: "SearchResultAvailableOffersQuery",
		Variables: offersVariables{
			BookingFlow: "LEISURE",
			AvailableOfferRequestBody: offersRequestBody{
				CommercialCabins: []string{cabin},
				Passengers:       passengers,
				RequestedConnections: []gqlConnection{{
					Origin:        gqlEndpoint{Code: req.Origin, Type: "AIRPORT"},
					Destination:   gqlEndpoint{Code: req.Destination, Type: "AIRPORT"},
					DepartureDate: req.DepartureDate.Format("2006-01-02"),
				}},
				BookingFlow: "LEISURE",
			},
			SearchStateUUID: uuid.New().String(),
		},
	}
	out.Extensions.PersistedQuery = persistedQuery{Version: 1, SHA256Hash: searchOffersHash}
	return out
}

func gqlHeaders() map[string]string {
	return map[string]string{
		"afkl-travel-host":     "KL",
		"afkl-travel-market":   "US",
		"afkl-travel-language": "en",
		"afkl-travel-country":  "US",
		"x-aviato-host":        "www.klm.com",
		"Content-Type":         "application/json",
		"Accept":               "application/json, text/plain, */*",
	}
}

func (c *graphqlCrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	payload, err := json.Marshal(buildOffersRequest(req))
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	envelope, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  3 * time.Second,
		MaxDelay:   15 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (*offersEnvelope, error) {
		body, err := c.browser.PageFetch(ctx, klmBaseURL+"/", klmBaseURL+gqlPath,
			"POST", string(payload), gqlHeaders())
		if err != nil {
			return nil, err
		}
		var envelope offersEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, transport.BadShape("graphql response: %v", err)
		}
		if len(envelope.Errors) > 0 {
			return nil, transport.Upstream("graphql: %s", envelope.Errors[0].Message)
		}
		return &envelope, nil
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseAvailableOffers(envelope, req.CabinClass)
	if len(flights) == 0 {
		return core.FailedCrawlResult(core.SourceDirectCrawl,
			transport.BadShape("no itineraries for %s-%s", req.Origin, req.Destination),
			time.Since(start))
	}
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *graphqlCrawler) HealthCheck(ctx context.Context) bool {
	return c.browser.HealthCheck(ctx)
}

func (c *graphqlCrawler) Close() error { return c.browser.Close() }
