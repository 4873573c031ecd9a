package eastarjet

import (
	"encoding/json"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	airlineCode = "ZE"
	airlineName = "Eastar Jet"
)

type dailyLowFareResponse struct {
	// Errors is a free-form array of error objects; matched as text.
	Errors json.RawMessage `json:"errors"`
	Data   struct {
		CurrencyCode   string      `json:"currencyCode"`
		Origin         string      `json:"origin"`
		Destination    string      `json:"destination"`
		LowFareAmounts []lowFareDay `json:"lowFareAmounts"`
	} `json:"data"`
}

type lowFareDay struct {
	DeptDate   string  `json:"deptDate"`
	TotalPrice float64 `json:"totalPrice"`
}

func (r *dailyLowFareResponse) errorText() string {
	s := string(r.Errors)
	if s == "" || s == "null" || s == "[]" {
		return ""
	}
	return s
}

// parseDailyLowFares emits one synthetic calendar row per day with a
// positive fare. The calendar carries no schedule, so the rows have
// zero duration and arrival equal to departure.
func parseDailyLowFares(envelope *dailyLowFareResponse, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	currency := envelope.Data.CurrencyCode
	if currency == "" {
		currency = "KRW"
	}
	apiOrigin := envelope.Data.Origin
	if apiOrigin == "" {
		apiOrigin = origin
	}
	apiDest := envelope.Data.Destination
	if apiDest == "" {
		apiDest = destination
	}

	for _, day := range envelope.Data.LowFareAmounts {
		if day.TotalPrice <= 0 {
			continue
		}
		date, err := time.Parse("2006-01-02", day.DeptDate)
		if err != nil {
			logger.Warn("invalid low-fare date, skipping", "source", Name, "date", day.DeptDate)
			continue
		}

		flights = append(flights, normalize.SyntheticCalendarFlight(
			airlineCode, airlineName, apiOrigin, apiDest, date.UTC(),
			core.NormalizedPrice{
				Amount:    day.TotalPrice,
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				FareClass: "lowest",
				CrawledAt: now,
			},
			cabin, core.SourceDirectCrawl,
		))
	}
	return flights
}
