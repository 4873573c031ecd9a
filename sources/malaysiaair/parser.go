package malaysiaair

import (
	"strconv"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	airlineCode = "MH"
	airlineName = "Malaysia Airlines"
)

type fareEntry struct {
	RefNo string `json:"refNo"`
	// DateOfDeparture is DDMMYY, day first.
	DateOfDeparture string      `json:"dateOfDeparture"`
	TotalFareAmount string      `json:"totalFareAmount"`
	TotalTaxAmount  string      `json:"totalTaxAmount"`
	Currency        string      `json:"currency"`
	IsLowFare       bool        `json:"isLowFare"`
	ReturnDetail    []returnLeg `json:"returnDetail"`
}

type returnLeg struct {
	DateOfDeparture string `json:"dateOfDeparture"`
	TotalFareAmount string `json:"totalFareAmount"`
	TotalTaxAmount  string `json:"totalTaxAmount"`
	Currency        string `json:"currency"`
}

func parseDDMMYY(value string) (time.Time, bool) {
	if len(value) != 6 {
		return time.Time{}, false
	}
	date, err := time.Parse("020106", value)
	if err != nil {
		logger.Warn("invalid DDMMYY date, skipping", "source", Name, "date", value)
		return time.Time{}, false
	}
	return date, true
}

func parseAmounts(fare, tax string) (float64, bool) {
	amount, err := strconv.ParseFloat(fare, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	if taxAmount, err := strconv.ParseFloat(tax, 64); err == nil {
		amount += taxAmount
	}
	return amount, true
}

func calendarFlight(origin, destination string, date time.Time, amount float64, currency, fareClass string, cabin core.CabinClass) core.NormalizedFlight {
	if currency == "" {
		currency = "MYR"
	}
	return normalize.SyntheticCalendarFlight(
		airlineCode, airlineName, origin, destination, date,
		core.NormalizedPrice{
			Amount:    amount,
			Currency:  currency,
			Source:    core.SourceDirectCrawl,
			FareClass: fareClass,
			CrawledAt: time.Now().UTC(),
		},
		cabin, core.SourceDirectCrawl,
	)
}

// parseOnewayFares emits one synthetic row per priced calendar day.
func parseOnewayFares(entries []fareEntry, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	var flights []core.NormalizedFlight
	for _, entry := range entries {
		amount, ok := parseAmounts(entry.TotalFareAmount, entry.TotalTaxAmount)
		if !ok {
			continue
		}
		date, ok := parseDDMMYY(entry.DateOfDeparture)
		if !ok {
			continue
		}
		fareClass := "economy-lowest"
		if entry.IsLowFare {
			fareClass = "economy-promo"
		}
		flights = append(flights, calendarFlight(origin, destination, date, amount, entry.Currency, fareClass, cabin))
	}
	return flights
}

// parseReturnFares emits the outbound fare plus one reversed-route row
// per return-leg calendar day.
func parseReturnFares(entries []fareEntry, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	var flights []core.NormalizedFlight
	for _, entry := range entries {
		if amount, ok := parseAmounts(entry.TotalFareAmount, entry.TotalTaxAmount); ok {
			if date, ok := parseDDMMYY(entry.DateOfDeparture); ok {
				flights = append(flights, calendarFlight(origin, destination, date, amount, entry.Currency, "economy-lowest-outbound", cabin))
			}
		}
		for _, ret := range entry.ReturnDetail {
			amount, ok := parseAmounts(ret.TotalFareAmount, ret.TotalTaxAmount)
			if !ok {
				continue
			}
			date, ok := parseDDMMYY(ret.DateOfDeparture)
			if !ok {
				continue
			}
			currency := ret.Currency
			if currency == "" {
				currency = entry.Currency
			}
			flights = append(flights, calendarFlight(destination, origin, date, amount, currency, "economy-lowest-return", cabin))
		}
	}
	return flights
}
