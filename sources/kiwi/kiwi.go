package kiwi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/transport"
)

// Name is the registry key for this source.
const Name = "kiwi"

const baseURL = "https://api.tequila.kiwi.com"

var cabinCodes = map[core.CabinClass]string{
	core.Economy:        "M",
	core.PremiumEconomy: "W",
	core.Business:       "C",
	core.First:          "F",
}

// Crawler fetches itineraries from the Kiwi Tequila /v2/search API.
type Crawler struct {
	http *transport.Direct
}

// New builds the adapter. Construction fails without an API key; other
// sources stay usable.
func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	if cfg.KiwiAPIKey == "" {
		return nil, fmt.Errorf("kiwi: CRAWLER_KIWI_API_KEY is not set")
	}
	d, err := transport.NewDirect(transport.DirectOptions{
		Timeout: cfg.L1Timeout,
		Headers: map[string]string{"apikey": cfg.KiwiAPIKey},
	})
	if err != nil {
		return nil, fmt.Errorf("kiwi: %w", err)
	}
	return &Crawler{http: d}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	params := url.Values{}
	params.Set("fly_from", req.Origin)
	params.Set("fly_to", req.Destination)
	params.Set("date_from", req.DepartureDate.Format("02/01/2006"))
	params.Set("date_to", req.DepartureDate.Format("02/01/2006"))
	params.Set("adults", strconv.Itoa(req.Passengers.Adults))
	params.Set("children", strconv.Itoa(req.Passengers.Children))
	params.Set("infants", strconv.Itoa(req.Passengers.InfantsSeat+req.Passengers.InfantsLap))
	params.Set("selected_cabins", cabinCode(req.CabinClass))
	params.Set("curr", req.Currency)
	params.Set("limit", "50")
	if req.ReturnDate != nil {
		params.Set("return_from", req.ReturnDate.Format("02/01/2006"))
		params.Set("return_to", req.ReturnDate.Format("02/01/2006"))
	}

	var raw searchResponse
	err := c.http.GetJSON(ctx, baseURL+"/v2/search?"+params.Encode(), nil, &raw)
	if err != nil {
		return core.FailedCrawlResult(core.SourceKiwiAPI, err, time.Since(start))
	}

	flights := parseSearch(&raw, req.CabinClass)
	return core.NewCrawlResult(core.SourceKiwiAPI, flights, time.Since(start))
}

// HealthCheck probes the search endpoint with a far-future date; any
// well-formed response counts as healthy.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	params := url.Values{}
	params.Set("fly_from", "ICN")
	params.Set("fly_to", "NRT")
	params.Set("date_from", "01/01/2099")
	params.Set("date_to", "01/01/2099")
	params.Set("adults", "1")
	params.Set("limit", "1")

	var raw map[string]any
	if err := c.http.GetJSON(ctx, baseURL+"/v2/search?"+params.Encode(), nil, &raw); err != nil {
		return false
	}
	_, ok := raw["data"]
	return ok
}

func (c *Crawler) Close() error { return c.http.Close() }

func cabinCode(cabin core.CabinClass) string {
	if code, ok := cabinCodes[cabin]; ok {
		return code
	}
	return "M"
}
