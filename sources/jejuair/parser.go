package jejuair

import (
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	airlineCode = "7C"
	airlineName = "Jeju Air"
)

type calendarResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Lowfares struct {
			CurrencyCode       string       `json:"currencyCode"`
			LowFareDateMarkets []dateMarket `json:"lowFareDateMarkets"`
		} `json:"lowfares"`
	} `json:"data"`
}

type dateMarket struct {
	// DepartureDate looks like "2026-03-01T00:00:00".
	DepartureDate    string `json:"departureDate"`
	Origin           string `json:"origin"`
	Destination      string `json:"destination"`
	NoFlights        bool   `json:"noFlights"`
	LowestFareAmount struct {
		FareAmount         float64 `json:"fareAmount"`
		TaxesAndFeesAmount float64 `json:"taxesAndFeesAmount"`
	} `json:"lowestFareAmount"`
}

// parseLowestFares emits one synthetic row per flyable calendar day,
// fare and taxes combined.
func parseLowestFares(raw *calendarResponse, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	currency := raw.Data.Lowfares.CurrencyCode
	if currency == "" {
		currency = "KRW"
	}

	var flights []core.NormalizedFlight
	for _, market := range raw.Data.Lowfares.LowFareDateMarkets {
		if market.NoFlights {
			continue
		}
		total := market.LowestFareAmount.FareAmount + market.LowestFareAmount.TaxesAndFeesAmount
		if total <= 0 {
			continue
		}
		date, err := time.Parse("2006-01-02T15:04:05", market.DepartureDate)
		if err != nil {
			logger.Warn("invalid calendar date, skipping", "source", Name, "date", market.DepartureDate)
			continue
		}
		marketOrigin := market.Origin
		if marketOrigin == "" {
			marketOrigin = origin
		}
		marketDest := market.Destination
		if marketDest == "" {
			marketDest = destination
		}
		flights = append(flights, normalize.SyntheticCalendarFlight(
			airlineCode, airlineName, marketOrigin, marketDest, date.UTC(),
			core.NormalizedPrice{
				Amount:    total,
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
