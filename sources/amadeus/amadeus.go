// Package amadeus crawls the Amadeus Self-Service flight-offers API,
// the one GDS-backed source in the pool. Offers carry full pricing
// including fare class and baggage allowance.
package amadeus

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/sources/oauth2"
	"github.com/skyfare/skyfare/transport"
)

const Name = "amadeus"

// maxOffers caps the number of offers per search. The API allows up
// to 250 but 50 keeps responses fast on the test hostname.
const maxOffers = 50

// Crawler searches flight offers through the Amadeus GDS.
type Crawler struct {
	http   *transport.Direct
	tokens *oauth2.TokenSource
	base   string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	if cfg.AmadeusClientID == "" || cfg.AmadeusClientSecret == "" {
		return nil, fmt.Errorf("amadeus: CRAWLER_AMADEUS_CLIENT_ID and CRAWLER_AMADEUS_CLIENT_SECRET are not set")
	}
	d, err := transport.NewDirect(transport.DirectOptions{Timeout: cfg.L1Timeout})
	if err != nil {
		return nil, fmt.Errorf("amadeus: %w", err)
	}
	base := "https://" + cfg.AmadeusHostname
	return &Crawler{
		http:   d,
		tokens: oauth2.New(d, base+"/v1/security/oauth2/token", cfg.AmadeusClientID, cfg.AmadeusClientSecret),
		base:   base,
	}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	offers, err := c.searchOffers(ctx, req)
	if err != nil {
		return core.FailedCrawlResult(core.SourceGDS, err, time.Since(start))
	}

	flights := parseOffers(offers, req.CabinClass)
	return core.NewCrawlResult(core.SourceGDS, flights, time.Since(start))
}

// searchOffers calls GET /v2/shopping/flight-offers, refreshing the
// token and re-attempting once on an observed 401.
func (c *Crawler) searchOffers(ctx context.Context, req core.SearchRequest) ([]offer, error) {
	q := url.Values{}
	q.Set("originLocationCode", req.Origin)
	q.Set("destinationLocationCode", req.Destination)
	q.Set("departureDate", req.DepartureDate.Format("2006-01-02"))
	q.Set("adults", strconv.Itoa(req.Passengers.Adults))
	q.Set("travelClass", string(req.CabinClass))
	q.Set("currencyCode", req.Currency)
	q.Set("max", strconv.Itoa(maxOffers))
	if req.TripType == core.RoundTrip && req.ReturnDate != nil {
		q.Set("returnDate", req.ReturnDate.Format("2006-01-02"))
	}
	searchURL := c.base + "/v2/shopping/flight-offers?" + q.Encode()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var envelope offersResponse
	err = c.http.GetJSON(ctx, searchURL, oauth2.AuthHeaders(token), &envelope)
	if errors.Is(err, transport.ErrAuthExpired) {
		c.tokens.Invalidate()
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		err = c.http.GetJSON(ctx, searchURL, oauth2.AuthHeaders(token), &envelope)
	}
	if err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// HealthCheck verifies the credentials by obtaining a token.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	_, err := c.tokens.Token(ctx)
	return err == nil
}

func (c *Crawler) Close() error { return c.http.Close() }
