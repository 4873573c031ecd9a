package cathay

import (
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	airlineCode = "CX"
	airlineName = "Cathay Pacific"
)

var cabinMap = map[string]core.CabinClass{
	"Y": core.Economy,
	"W": core.PremiumEconomy,
	"J": core.Business,
	"F": core.First,
}

type histogramEntry struct {
	// Dates are compact YYYYMMDD.
	DateDeparture string  `json:"date_departure"`
	DateReturn    string  `json:"date_return"`
	BaseFare      float64 `json:"base_fare"`
	TotalFare     float64 `json:"total_fare"`
	Currency      string  `json:"currency"`
	Tax           float64 `json:"tax"`
	OutboundCabin string  `json:"outbound_cabin"`
	InboundCabin  string  `json:"inbound_cabin"`
	TaxInclusive  bool    `json:"tax_inclusive"`
}

// parseHistogram emits one synthetic row per departure date with the
// cheapest tax-inclusive return fare. The calendar has no flight
// identity, so rows use the route-synthetic flight number.
func parseHistogram(entries []histogramEntry, origin, destination string, fallback core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, entry := range entries {
		if entry.TotalFare <= 0 {
			continue
		}
		date, err := normalize.ParseCompactDate(entry.DateDeparture)
		if err != nil {
			logger.Warn("invalid histogram date, skipping", "source", Name, "date", entry.DateDeparture)
			continue
		}

		currency := entry.Currency
		if currency == "" {
			currency = "HKD"
		}
		cabin := fallback
		if mapped, ok := cabinMap[entry.OutboundCabin]; ok {
			cabin = mapped
		}
		fareClass := entry.OutboundCabin
		if fareClass == "" {
			fareClass = "lowest"
		}

		flights = append(flights, normalize.SyntheticCalendarFlight(
			airlineCode, airlineName, origin, destination, date,
			core.NormalizedPrice{
				Amount:    entry.TotalFare,
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				FareClass: fareClass,
				CrawledAt: now,
			},
			cabin, core.SourceDirectCrawl,
		))
	}
	return flights
}
