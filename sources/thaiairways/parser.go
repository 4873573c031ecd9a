package thaiairways

import (
	"strconv"
	"strings"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	airlineCode = "TG"
	airlineName = "Thai Airways"
)

var cabinMap = map[string]core.CabinClass{
	"Y":               core.Economy,
	"M":               core.Economy,
	"W":               core.PremiumEconomy,
	"P":               core.PremiumEconomy,
	"C":               core.Business,
	"J":               core.Business,
	"F":               core.First,
	"ECONOMY":         core.Economy,
	"PREMIUM_ECONOMY": core.PremiumEconomy,
	"PREMIUM":         core.PremiumEconomy,
	"BUSINESS":        core.Business,
	"FIRST":           core.First,
}

type popularFaresResponse struct {
	Prices []popularFare `json:"prices"`
}

type popularFare struct {
	DepartureAirportIataCode string `json:"departureAirportIataCode"`
	ArrivalAirportIataCode   string `json:"arrivalAirportIataCode"`
	Date                     string `json:"date"`
	Fare                     struct {
		// TotalPrice arrives formatted, e.g. "317,300".
		TotalPrice   string `json:"totalPrice"`
		CurrencyCode string `json:"currencyCode"`
		FareClass    string `json:"fareClass"`
	} `json:"fare"`
}

// parseFareAmount strips thousands separators from a formatted price.
func parseFareAmount(s string) (float64, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if cleaned == "" {
		return 0, false
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

// parsePopularFares converts the calendar-pricing entries into
// synthetic rows filtered to the requested route.
func parsePopularFares(envelope *popularFaresResponse, origin, destination string, fallback core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, entry := range envelope.Prices {
		if origin != "" && !strings.EqualFold(entry.DepartureAirportIataCode, origin) {
			continue
		}
		if destination != "" && !strings.EqualFold(entry.ArrivalAirportIataCode, destination) {
			continue
		}

		date, err := time.Parse("2006-01-02", entry.Date)
		if err != nil {
			logger.Warn("invalid popular-fares date, skipping", "source", Name, "date", entry.Date)
			continue
		}
		amount, ok := parseFareAmount(entry.Fare.TotalPrice)
		if !ok {
			continue
		}

		currency := entry.Fare.CurrencyCode
		if currency == "" {
			currency = "KRW"
		}
		cabin := fallback
		if mapped, ok := cabinMap[strings.ToUpper(entry.Fare.FareClass)]; ok {
			cabin = mapped
		}

		flights = append(flights, normalize.SyntheticCalendarFlight(
			airlineCode, airlineName,
			entry.DepartureAirportIataCode, entry.ArrivalAirportIataCode, date.UTC(),
			core.NormalizedPrice{
				Amount:    amount,
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				FareClass: entry.Fare.FareClass,
				CrawledAt: now,
			},
			cabin, core.SourceDirectCrawl,
		))
	}
	return flights
}
