package sputnik

import (
	"strings"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

// fareClasses maps sputnik fareClass strings to cabin classes.
var fareClasses = map[string]core.CabinClass{
	"ECONOMY":         core.Economy,
	"PREMIUM_ECONOMY": core.PremiumEconomy,
	"PREMIUMECONOMY":  core.PremiumEconomy,
	"BUSINESS":        core.Business,
	"FIRST":           core.First,
}

type fareEntry struct {
	DepartureDate  string `json:"departureDate"`
	OutboundFlight struct {
		DepartureAirportIataCode string `json:"departureAirportIataCode"`
		ArrivalAirportIataCode   string `json:"arrivalAirportIataCode"`
		FareClass                string `json:"fareClass"`
		FareClassInput           string `json:"fareClassInput"`
	} `json:"outboundFlight"`
	PriceSpecification struct {
		TotalPrice   float64 `json:"totalPrice"`
		CurrencyCode string  `json:"currencyCode"`
		SoldOut      bool    `json:"soldOut"`
	} `json:"priceSpecification"`
}

// ParseFares converts sputnik fare entries into synthetic calendar
// rows, filtered to the requested route. Sold-out and priceless
// entries are dropped.
func ParseFares(entries []fareEntry, tenant Tenant, origin, destination string, fallback core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, entry := range entries {
		spec := entry.PriceSpecification
		if spec.TotalPrice <= 0 || spec.SoldOut {
			continue
		}

		dep := entry.OutboundFlight.DepartureAirportIataCode
		arr := entry.OutboundFlight.ArrivalAirportIataCode
		if dep == "" || arr == "" {
			continue
		}
		if origin != "" && !strings.EqualFold(dep, origin) {
			continue
		}
		if destination != "" && !strings.EqualFold(arr, destination) {
			continue
		}

		date, err := time.Parse("2006-01-02", entry.DepartureDate)
		if err != nil {
			logger.Warn("invalid sputnik fare date, skipping",
				"source", tenant.Name, "date", entry.DepartureDate)
			continue
		}

		cabin := fallback
		fareLabel := "lowest"
		if fc := entry.OutboundFlight.FareClass; fc != "" {
			if mapped, ok := fareClasses[strings.ToUpper(fc)]; ok {
				cabin = mapped
			}
			fareLabel = strings.ToLower(fc)
			if input := entry.OutboundFlight.FareClassInput; input != "" {
				fareLabel += "-" + input
			}
		}

		currency := spec.CurrencyCode
		if currency == "" {
			currency = "KRW"
		}

		flights = append(flights, normalize.SyntheticCalendarFlight(
			tenant.AirlineCode, tenant.AirlineName, dep, arr, date.UTC(),
			core.NormalizedPrice{
				Amount:    spec.TotalPrice,
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				FareClass: fareLabel,
				CrawledAt: now,
			},
			cabin, core.SourceDirectCrawl,
		))
	}
	return flights
}
