// Package airbusan crawls the Air Busan booking API. Cloudflare
// fronts the site but whitelists the Naver search crawler, so sending
// the Yeti user agent skips the JS challenge outright: no cookies, no
// warm-up, no CSRF.
package airbusan

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const Name = "air_busan"

const (
	baseURL   = "https://www.airbusan.com"
	availPath = "/web/bookingApi/flightsAvail"

	yetiUserAgent = "Yeti/1.1 (NHN Corp.; https://help.naver.com/robots/)"
)

type Crawler struct {
	http *transport.Impersonate
	base string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	im := transport.NewImpersonate(transport.ImpersonateOptions{
		Timeout:   cfg.L2Timeout,
		UserAgent: yetiUserAgent,
		Headers: map[string]string{
			"Accept":           "application/json, text/javascript, */*; q=0.01",
			"X-Requested-With": "XMLHttpRequest",
			"Referer":          baseURL + "/web/individual/booking/international",
			"Origin":           baseURL,
		},
	})
	return &Crawler{http: im, base: baseURL}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	tripType := "OW"
	if req.TripType == core.RoundTrip {
		tripType = "RT"
	}
	form := url.Values{
		"tripType":        {tripType},
		"depCity1":        {req.Origin},
		"arrCity1":        {req.Destination},
		"depDate1":        {req.DepartureDate.Format("20060102")},
		"paxCountAd":      {strconv.Itoa(req.Passengers.Adults)},
		"paxCountCh":      {strconv.Itoa(req.Passengers.Children)},
		"paxCountIn":      {strconv.Itoa(req.Passengers.InfantsSeat + req.Passengers.InfantsLap)},
		"bookingCategory": {"Individual"},
	}

	envelope, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (*availResponse, error) {
		return c.fetchAvail(ctx, form)
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseFlightsAvail(envelope, req.Origin, req.Destination, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) fetchAvail(ctx context.Context, form url.Values) (*availResponse, error) {
	var envelope availResponse
	if err := c.http.PostForm(ctx, c.base+availPath, form, nil, &envelope); err != nil {
		return nil, err
	}
	if envelope.ErrorCode != "" {
		return nil, transport.Upstream("air_busan flightsAvail (%s): %s", envelope.ErrorCode, envelope.ErrorDesc)
	}
	return &envelope, nil
}

// HealthCheck queries the PUS-CJU shuttle a month out.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	form := url.Values{
		"tripType":        {"OW"},
		"depCity1":        {"PUS"},
		"arrCity1":        {"CJU"},
		"depDate1":        {time.Now().AddDate(0, 1, 0).Format("20060102")},
		"paxCountAd":      {"1"},
		"paxCountCh":      {"0"},
		"paxCountIn":      {"0"},
		"bookingCategory": {"Individual"},
	}
	envelope, err := c.fetchAvail(ctx, form)
	return err == nil && len(envelope.ListItineraryFare) > 0
}

func (c *Crawler) Close() error { return c.http.Close() }
