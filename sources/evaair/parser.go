package evaair

import (
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	airlineCode = "BR"
	airlineName = "EVA Air"
)

type bestPricesResponse struct {
	Succ    bool   `json:"Succ"`
	Code    string `json:"Code"`
	Message string `json:"Message"`
	Data    struct {
		Currency string       `json:"currency"`
		Data     []priceEntry `json:"data"`
	} `json:"Data"`
}

type priceEntry struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
	// Highlight marks the cheapest date in the range.
	Highlight bool `json:"highlight"`
}

// parseBestPrices emits one synthetic row per priced calendar day in
// the server-chosen currency.
func parseBestPrices(raw *bestPricesResponse, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	currency := raw.Data.Currency
	if currency == "" {
		currency = "TWD"
	}

	var flights []core.NormalizedFlight
	for _, entry := range raw.Data.Data {
		if entry.Price <= 0 || entry.Date == "" {
			continue
		}
		date, err := time.Parse("2006-01-02T15:04:05", entry.Date)
		if err != nil {
			logger.Warn("invalid calendar date, skipping", "source", Name, "date", entry.Date)
			continue
		}
		fareClass := "lowest"
		if entry.Highlight {
			fareClass = "lowest-highlight"
		}
		flights = append(flights, normalize.SyntheticCalendarFlight(
			airlineCode, airlineName, origin, destination, date.UTC(),
			core.NormalizedPrice{
				Amount:    entry.Price,
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
