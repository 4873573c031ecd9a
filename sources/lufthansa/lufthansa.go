// Package lufthansa crawls the Lufthansa Group Open API. The
// operations/schedules endpoint covers LH, LX, OS, 4U, SN, EN, WK and
// 4Y but carries no fares, so this source contributes schedule rows
// that other sources price.
package lufthansa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/sources/oauth2"
	"github.com/skyfare/skyfare/transport"
)

const Name = "lufthansa"

// airlineNames maps the group's IATA codes to display names.
var airlineNames = map[string]string{
	"LH": "Lufthansa",
	"LX": "Swiss International Air Lines",
	"OS": "Austrian Airlines",
	"4U": "Eurowings",
	"SN": "Brussels Airlines",
	"EN": "Air Dolomiti",
	"WK": "Edelweiss Air",
	"4Y": "Eurowings Discover",
}

// Crawler reads flight schedules from the Lufthansa developer portal.
type Crawler struct {
	http   *transport.Direct
	tokens *oauth2.TokenSource
	base   string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	if cfg.LufthansaClientID == "" || cfg.LufthansaClientSecret == "" {
		return nil, fmt.Errorf("lufthansa: CRAWLER_LUFTHANSA_CLIENT_ID and CRAWLER_LUFTHANSA_CLIENT_SECRET are not set")
	}
	d, err := transport.NewDirect(transport.DirectOptions{Timeout: cfg.L1Timeout})
	if err != nil {
		return nil, fmt.Errorf("lufthansa: %w", err)
	}
	base := "https://" + cfg.LufthansaHostname
	return &Crawler{
		http:   d,
		tokens: oauth2.New(d, base+"/v1/oauth/token", cfg.LufthansaClientID, cfg.LufthansaClientSecret),
		base:   base,
	}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	schedules, err := c.fetchSchedules(ctx, req.Origin, req.Destination, req.DepartureDate)
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseSchedules(schedules, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

// fetchSchedules calls the operations/schedules endpoint, refreshing
// the token and re-attempting once on an observed 401.
func (c *Crawler) fetchSchedules(ctx context.Context, origin, destination string, date time.Time) ([]scheduleEntry, error) {
	url := fmt.Sprintf("%s/v1/operations/schedules/%s/%s/%s?directFlights=0",
		c.base, origin, destination, date.Format("2006-01-02"))

	var envelope scheduleResponse
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	err = c.http.GetJSON(ctx, url, oauth2.AuthHeaders(token), &envelope)
	if errors.Is(err, transport.ErrAuthExpired) {
		c.tokens.Invalidate()
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		err = c.http.GetJSON(ctx, url, oauth2.AuthHeaders(token), &envelope)
	}
	if err != nil {
		return nil, err
	}
	return envelope.ScheduleResource.Schedule, nil
}

// HealthCheck verifies the credentials by obtaining a token.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	_, err := c.tokens.Token(ctx)
	return err == nil
}

func (c *Crawler) Close() error { return c.http.Close() }
