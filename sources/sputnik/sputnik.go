// Package sputnik crawls the EveryMundo airfare-sputnik service on
// airtrfx.com, which several carriers use to publish daily lowest
// one-way fares. One shared client serves every tenant; only the
// tenant path and the CORS headers differ.
//
// The origin/destination body parameters influence ranking but the
// service still returns fares across all routes, so route filtering
// happens in the parser.
package sputnik

import (
	"context"
	"fmt"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const baseURL = "https://openair-california.airtrfx.com/airfare-sputnik-service/v3"

// publicAPIKey is the EM key shared across EveryMundo airline tenants;
// a tenant-specific key from config overrides it.
const publicAPIKey = "HeQpRjsFI5xlAaSx2onkjc1HTK0ukqA1IrVvd5fvaMhNtzLTxInTpeYB1MK93pah"

// Default search window and limits.
const (
	defaultDaysMin       = 1
	defaultDaysMax       = 300
	defaultRoutesLimit   = 100
	defaultFaresLimit    = 500
	defaultFaresPerRoute = 5
)

// Tenant describes one carrier on the sputnik service.
type Tenant struct {
	// Name is the registry key, e.g. "jal".
	Name string
	// Path is the tenant segment in the fares URL, e.g. "jl".
	Path        string
	AirlineCode string
	AirlineName string
	// Referer and SiteOrigin satisfy the service's CORS policy.
	Referer    string
	SiteOrigin string
	// HealthOrigin is the hub airport probed by HealthCheck.
	HealthOrigin string
}

var (
	ThaiAirways = Tenant{
		Name:         "thai_airways_sputnik",
		Path:         "tg",
		AirlineCode:  "TG",
		AirlineName:  "Thai Airways",
		Referer:      "https://www.thaiairways.com/flights/en/",
		SiteOrigin:   "https://www.thaiairways.com",
		HealthOrigin: "BKK",
	}
	JapanAirlines = Tenant{
		Name:         "jal",
		Path:         "jl",
		AirlineCode:  "JL",
		AirlineName:  "Japan Airlines",
		Referer:      "https://www.jal.co.jp/jp/en/",
		SiteOrigin:   "https://www.jal.co.jp",
		HealthOrigin: "NRT",
	}
	AirNewZealand = Tenant{
		Name:         "air_nz",
		Path:         "nz",
		AirlineCode:  "NZ",
		AirlineName:  "Air New Zealand",
		Referer:      "https://www.airnewzealand.co.nz/flights/en-nz/",
		SiteOrigin:   "https://www.airnewzealand.co.nz",
		HealthOrigin: "AKL",
	}
	EthiopianAirlines = Tenant{
		Name:         "ethiopian_airlines",
		Path:         "et",
		AirlineCode:  "ET",
		AirlineName:  "Ethiopian Airlines",
		Referer:      "https://www.ethiopianairlines.com/en-us/",
		SiteOrigin:   "https://www.ethiopianairlines.com",
		HealthOrigin: "ADD",
	}
)

type searchBody struct {
	Currency              string       `json:"currency"`
	DepartureDaysInterval daysInterval `json:"departureDaysInterval"`
	RoutesLimit           int          `json:"routesLimit"`
	FaresLimit            int          `json:"faresLimit"`
	FaresPerRoute         int          `json:"faresPerRoute"`
	Origin                string       `json:"origin,omitempty"`
	Destination           string       `json:"destination,omitempty"`
}

type daysInterval struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Crawler serves one tenant over the impersonating transport; the
// service sits behind Cloudflare and rejects native Go TLS.
type Crawler struct {
	http   *transport.Impersonate
	tenant Tenant
	apiKey string
	base   string
}

func New(cfg config.CrawlerConfig, tenant Tenant) (crawler.Crawler, error) {
	apiKey := cfg.SputnikAPIKey
	if apiKey == "" {
		apiKey = publicAPIKey
	}
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout: cfg.L2Timeout,
		Headers: map[string]string{
			"em-api-key": apiKey,
			"Accept":     "application/json",
			"Referer":    tenant.Referer,
			"Origin":     tenant.SiteOrigin,
		},
	})
	return &Crawler{http: im, tenant: tenant, apiKey: apiKey, base: baseURL}, nil
}

func (c *Crawler) Name() string { return c.tenant.Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	entries, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() ([]fareEntry, error) {
		return c.searchFares(ctx, searchBody{
			Currency:              req.Currency,
			DepartureDaysInterval: daysInterval{Min: defaultDaysMin, Max: defaultDaysMax},
			RoutesLimit:           defaultRoutesLimit,
			FaresLimit:            defaultFaresLimit,
			FaresPerRoute:         defaultFaresPerRoute,
			Origin:                req.Origin,
			Destination:           req.Destination,
		})
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := ParseFares(entries, c.tenant, req.Origin, req.Destination, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) searchFares(ctx context.Context, body searchBody) ([]fareEntry, error) {
	url := fmt.Sprintf("%s/%s/fares/search", c.base, c.tenant.Path)
	var entries []fareEntry
	if err := c.http.PostJSON(ctx, url, body, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// HealthCheck runs a small fare search from the tenant's hub and
// requires at least one priced entry.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	entries, err := c.searchFares(ctx, searchBody{
		Currency:              "KRW",
		DepartureDaysInterval: daysInterval{Min: defaultDaysMin, Max: defaultDaysMax},
		RoutesLimit:           5,
		FaresLimit:            10,
		FaresPerRoute:         2,
		Origin:                c.tenant.HealthOrigin,
	})
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.PriceSpecification.TotalPrice > 0 {
			return true
		}
	}
	return false
}

func (c *Crawler) Close() error { return c.http.Close() }
