package turkishair

import (
	"context"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

// officialCrawler uses the developer API from
// developer.apim.turkishairlines.com. Every request authenticates with
// the apikey and apisecret headers issued on the portal.
type officialCrawler struct {
	http      *transport.Direct
	base      string
	apiKey    string
	apiSecret string
}

func newOfficial(cfg config.CrawlerConfig) (*officialCrawler, error) {
	d, err := transport.NewDirect(transport.DirectOptions{
		Timeout:  cfg.L2Timeout,
		RetryMax: 0,
	})
	if err != nil {
		return nil, err
	}
	return &officialCrawler{
		http:      d,
		base:      "https://" + cfg.TurkishAPIHostname,
		apiKey:    cfg.TurkishAPIKey,
		apiSecret: cfg.TurkishAPISecret,
	}, nil
}

func (c *officialCrawler) Name() string { return "turkish_airlines_official" }

func (c *officialCrawler) headers() map[string]string {
	return map[string]string{
		"apikey":       c.apiKey,
		"apisecret":    c.apiSecret,
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
}

type officialSearch struct {
	DepartureAirportCode string `json:"departureAirportCode"`
	ArrivalAirportCode   string `json:"arrivalAirportCode"`
	DepartureDate        string `json:"departureDate"`
	CabinClass           string `json:"cabinClass,omitempty"`
	PassengerCount       int    `json:"passengerCount,omitempty"`
}

func (c *officialCrawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	cabin, ok := cabinForm[req.CabinClass]
	if !ok {
		cabin = "Economy"
	}

	availability, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (map[string]any, error) {
		var out map[string]any
		err := c.http.PostJSON(ctx, c.base+"/getAvailability", officialSearch{
			DepartureAirportCode: req.Origin,
			ArrivalAirportCode:   req.Destination,
			DepartureDate:        req.DepartureDate.Format("2006-01-02"),
			CabinClass:           cabin,
			PassengerCount:       req.Passengers.Adults,
		}, c.headers(), &out)
		return out, err
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceOfficialAPI, err, time.Since(start))
	}

	flights := parseOfficialAvailability(availability, req.CabinClass)
	if len(flights) == 0 {
		// The timetable has no prices but still yields the schedule.
		timetable, err := retry.DoValue(ctx, retry.Config{
			MaxRetries: 2,
			BaseDelay:  time.Second,
			MaxDelay:   10 * time.Second,
			RetryIf:    transport.Retryable,
		}, func() (map[string]any, error) {
			var out map[string]any
			err := c.http.PostJSON(ctx, c.base+"/getTimeTable", officialSearch{
				DepartureAirportCode: req.Origin,
				ArrivalAirportCode:   req.Destination,
				DepartureDate:        req.DepartureDate.Format("2006-01-02"),
			}, c.headers(), &out)
			return out, err
		})
		if err != nil {
			return core.FailedCrawlResult(core.SourceOfficialAPI, err, time.Since(start))
		}
		flights = parseOfficialTimetable(timetable, req.Origin, req.Destination, req.CabinClass)
	}
	return core.NewCrawlResult(core.SourceOfficialAPI, flights, time.Since(start))
}

// HealthCheck verifies the credentials against the port listing.
func (c *officialCrawler) HealthCheck(ctx context.Context) bool {
	var ports map[string]any
	err := c.http.GetJSON(ctx, c.base+"/getPortList", c.headers(), &ports)
	return err == nil && len(ports) > 0
}

func (c *officialCrawler) Close() error { return c.http.Close() }
