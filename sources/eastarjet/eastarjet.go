// Package eastarjet crawls the kraken.eastarjet.com booking API, a
// dotRez (Navitaire) deployment. Calls ride an anonymous session
// created up front and passed back as cookies; the daily low-fare
// calendar yields one synthetic row per day.
package eastarjet

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const Name = "eastar_jet"

const (
	baseURL    = "https://kraken.eastarjet.com"
	siteOrigin = "https://main.eastarjet.com"
)

// calendarDays is the width of the low-fare window requested from the
// departure date.
const calendarDays = 30

type sessionCreateResponse struct {
	Data struct {
		SessionXsessionID string `json:"sessionXsessionId"`
		JsessionID        string `json:"jsessionId"`
	} `json:"data"`
}

type dailyLowFareRequest struct {
	BeginDate               string `json:"beginDate"`
	EndDate                 string `json:"endDate"`
	OriginStationCodes      string `json:"originStationCodes"`
	DestinationStationCodes string `json:"destinationStationCodes"`
	Currency                string `json:"currency"`
}

// Crawler talks to the dotRez availability API.
type Crawler struct {
	http *transport.Direct
	base string

	mu           sync.Mutex
	sessionToken string
	jsessionID   string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	d, err := transport.NewDirect(transport.DirectOptions{
		Timeout: cfg.L1Timeout,
		Headers: map[string]string{
			"Origin":  siteOrigin,
			"Referer": siteOrigin + "/",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("eastar_jet: %w", err)
	}
	return &Crawler{http: d, base: baseURL}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	envelope, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   15 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (*dailyLowFareResponse, error) {
		return c.fetchDailyLowFares(ctx, req)
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseDailyLowFares(envelope, req.Origin, req.Destination, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

// ensureSession creates an anonymous dotRez session when none is held.
func (c *Crawler) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionToken != "" && c.jsessionID != "" {
		return nil
	}

	var resp sessionCreateResponse
	if err := c.http.GetJSON(ctx, c.base+"/passport/v1/session/create", nil, &resp); err != nil {
		return fmt.Errorf("eastar_jet session create: %w", err)
	}
	if resp.Data.SessionXsessionID == "" || resp.Data.JsessionID == "" {
		return transport.BadShape("eastar_jet session create missing tokens")
	}
	c.sessionToken = resp.Data.SessionXsessionID
	c.jsessionID = resp.Data.JsessionID
	return nil
}

func (c *Crawler) dropSession() {
	c.mu.Lock()
	c.sessionToken = ""
	c.jsessionID = ""
	c.mu.Unlock()
}

// sessionCookies builds the Cookie header dotRez expects: the JTI
// token is percent-encoded inside USER_STATE.
func (c *Crawler) sessionCookies() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	token := url.QueryEscape("JTI=" + c.sessionToken)
	// QueryEscape encodes '='; dotRez wants it kept.
	token = strings.ReplaceAll(token, "%3D", "=")
	return fmt.Sprintf("JSESSIONID=%s; USER_STATE=%s", c.jsessionID, token)
}

func (c *Crawler) fetchDailyLowFares(ctx context.Context, req core.SearchRequest) (*dailyLowFareResponse, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	payload := dailyLowFareRequest{
		BeginDate:               req.DepartureDate.Format("2006-01-02"),
		EndDate:                 req.DepartureDate.AddDate(0, 0, calendarDays).Format("2006-01-02"),
		OriginStationCodes:      req.Origin,
		DestinationStationCodes: req.Destination,
		Currency:                req.Currency,
	}

	var envelope dailyLowFareResponse
	err := c.http.PostJSON(ctx, c.base+"/availability/v1/dailyLowFare", payload,
		map[string]string{"Cookie": c.sessionCookies()}, &envelope)
	if err != nil {
		return nil, err
	}
	if msg := envelope.errorText(); msg != "" {
		if strings.Contains(msg, "SESSION_INVALID") {
			c.dropSession()
			return nil, fmt.Errorf("%w: eastar_jet session invalid", transport.ErrAuthExpired)
		}
		return nil, transport.Upstream("eastar_jet: %s", msg)
	}
	return &envelope, nil
}

// HealthCheck creates a session and lists departure routes.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	if err := c.ensureSession(ctx); err != nil {
		return false
	}
	var routes struct {
		Data []map[string]any `json:"data"`
	}
	err := c.http.GetJSON(ctx, c.base+"/route/v1/route/departureRoute",
		map[string]string{"Cookie": c.sessionCookies()}, &routes)
	return err == nil && len(routes.Data) > 0
}

func (c *Crawler) Close() error { return c.http.Close() }
