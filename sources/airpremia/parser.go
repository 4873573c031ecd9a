package airpremia

import (
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	airlineCode = "YP"
	airlineName = "Air Premia"
)

// Product class types: Economy, Premium Economy, and Premia First,
// which sells as a business-grade cabin.
var cabinMap = map[string]core.CabinClass{
	"EY": core.Economy,
	"PE": core.PremiumEconomy,
	"PF": core.Business,
}

type lowFare struct {
	ProductClassType string  `json:"productClassType"`
	ProductClass     string  `json:"productClass"`
	BaseFareAndTax   float64 `json:"baseFareAndTax"`
}

type dailyAvailability struct {
	Date      string    `json:"date"`
	SoldOut   bool      `json:"soldOut"`
	NoFlights bool      `json:"noFlights"`
	LowFares  []lowFare `json:"lowFares"`
}

type routeResult struct {
	Origin                     string              `json:"origin"`
	Destination                string              `json:"destination"`
	DailyLowFareAvailabilities []dailyAvailability `json:"dailyLowFareAvailabilities"`
}

type lowFaresResponse struct {
	Results []routeResult `json:"results"`
}

// parseLowFares emits one synthetic row per day and matching cabin.
// Chunked fetches overshoot the requested window, so days outside
// [begin, end] are discarded here.
func parseLowFares(days []dailyAvailability, origin, destination string, begin, end time.Time, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, day := range days {
		if day.SoldOut || day.NoFlights {
			continue
		}
		date, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			logger.Warn("invalid low-fare date, skipping", "source", Name, "date", day.Date)
			continue
		}
		if date.Before(begin) || date.After(end) {
			continue
		}

		for _, fare := range day.LowFares {
			fareCabin, ok := cabinMap[fare.ProductClassType]
			if !ok {
				fareCabin = core.Economy
			}
			if fareCabin != cabin {
				continue
			}
			if fare.BaseFareAndTax <= 0 {
				continue
			}

			flights = append(flights, normalize.SyntheticCalendarFlight(
				airlineCode, airlineName, origin, destination, date,
				core.NormalizedPrice{
					Amount:    fare.BaseFareAndTax,
					Currency:  "KRW",
					Source:    core.SourceDirectCrawl,
					FareClass: fare.ProductClass,
					CrawledAt: now,
				},
				fareCabin, core.SourceDirectCrawl,
			))
		}
	}
	return flights
}
