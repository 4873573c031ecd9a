// Package afklm crawls Air France and KLM fares. The group publishes
// daily lowest fares through the EveryMundo sputnik service under
// separate AF and KL tenants, which the primary crawler queries and
// merges. When sputnik has no data for a route, a browser fallback
// executes the Aviato GraphQL persisted query from inside a klm.com
// page, where the Akamai session cookie is valid.
package afklm

import (
	"context"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/sources/sputnik"
	"github.com/skyfare/skyfare/transport"
)

const Name = "af_klm"

var (
	airFranceTenant = sputnik.Tenant{
		Name:         "air_france_sputnik",
		Path:         "af",
		AirlineCode:  "AF",
		AirlineName:  "Air France",
		Referer:      "https://www.airfrance.com/",
		SiteOrigin:   "https://www.airfrance.com",
		HealthOrigin: "CDG",
	}
	klmTenant = sputnik.Tenant{
		Name:         "klm_sputnik",
		Path:         "kl",
		AirlineCode:  "KL",
		AirlineName:  "KLM Royal Dutch Airlines",
		Referer:      "https://www.klm.com/",
		SiteOrigin:   "https://www.klm.com",
		HealthOrigin: "AMS",
	}
)

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	pair, err := newTenantPair(cfg)
	if err != nil {
		return nil, err
	}
	return crawler.NewFallback(Name, pair, newGraphQL(cfg)), nil
}

// tenantPair queries both group tenants and merges whatever each one
// returns; it fails only when neither tenant yields flights.
type tenantPair struct {
	airFrance crawler.Crawler
	klm       crawler.Crawler
}

func newTenantPair(cfg config.CrawlerConfig) (*tenantPair, error) {
	af, err := sputnik.New(cfg, airFranceTenant)
	if err != nil {
		return nil, err
	}
	kl, err := sputnik.New(cfg, klmTenant)
	if err != nil {
		return nil, err
	}
	return &tenantPair{airFrance: af, klm: kl}, nil
}

func (c *tenantPair) Name() string { return "af_klm_sputnik" }

func (c *tenantPair) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()

	var flights []core.NormalizedFlight
	var lastErr string
	for _, inner := range []crawler.Crawler{c.airFrance, c.klm} {
		result := inner.Crawl(ctx, task)
		if result.Success {
			flights = append(flights, result.Flights...)
		} else {
			lastErr = result.Error
		}
	}
	if len(flights) == 0 {
		return core.FailedCrawlResult(core.SourceDirectCrawl,
			transport.Upstream("both group tenants empty: %s", lastErr),
			time.Since(start))
	}
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *tenantPair) HealthCheck(ctx context.Context) bool {
	return c.airFrance.HealthCheck(ctx) || c.klm.HealthCheck(ctx)
}

func (c *tenantPair) Close() error {
	err := c.airFrance.Close()
	if klErr := c.klm.Close(); err == nil {
		err = klErr
	}
	return err
}
