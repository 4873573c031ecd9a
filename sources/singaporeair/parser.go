package singaporeair

import (
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	sqCode = "SQ"
	sqName = "Singapore Airlines"
)

// bookingClasses maps SQ booking codes back to cabin classes.
var bookingClasses = map[string]core.CabinClass{
	"Y": core.Economy,
	"M": core.Economy,
	"W": core.PremiumEconomy,
	"S": core.PremiumEconomy,
	"J": core.Business,
	"C": core.Business,
	"F": core.First,
	"R": core.First,
}

type availabilityResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Response struct {
		Currency struct {
			Code string `json:"code"`
		} `json:"currency"`
		Recommendations []recommendation `json:"recommendations"`
	} `json:"response"`
}

type recommendation struct {
	SegmentBounds []segmentBound `json:"segmentBounds"`
}

type segmentBound struct {
	FareFamily   string `json:"fareFamily"`
	SellingClass string `json:"sellingClass"`
	CabinClass   string `json:"cabinClass"`
	FareSummary  struct {
		FareTotal struct {
			TotalAmount float64 `json:"totalAmount"`
		} `json:"fareTotal"`
		FareDetailsPerAdult struct {
			TotalAmount float64 `json:"totalAmount"`
		} `json:"fareDetailsPerAdult"`
	} `json:"fareSummary"`
	Segments []boundSegment `json:"segments"`
}

type boundSegment struct {
	DepartureDateTime string `json:"departureDateTime"`
	ArrivalDateTime   string `json:"arrivalDateTime"`
	TripDuration      int    `json:"tripDuration"`
	Legs              []leg  `json:"legs"`
}

type leg struct {
	FlightNumber           string `json:"flightNumber"`
	OriginAirportCode      string `json:"originAirportCode"`
	DestinationAirportCode string `json:"destinationAirportCode"`
	DepartureDateTime      string `json:"departureDateTime"`
	ArrivalDateTime        string `json:"arrivalDateTime"`
	FlightDuration         int    `json:"flightDuration"`
	OperatingAirline       struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"operatingAirline"`
	MarketingAirline struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"marketingAirline"`
	Aircraft struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"aircraft"`
}

// parseSQTime handles SQ's zone-less "yyyy-MM-dd HH:mm:ss" local
// datetimes, stored UTC-tagged.
func parseSQTime(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseAvailability flattens recommendations into one flight per
// segment. Prices come from the bound-level per-adult fare summary, so
// every segment of a bound carries the same fare.
func parseAvailability(envelope *availabilityResponse, origin, destination string, requested core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	currency := envelope.Response.Currency.Code
	if currency == "" {
		currency = "SGD"
	}

	for _, rec := range envelope.Response.Recommendations {
		for _, bound := range rec.SegmentBounds {
			cabin := requested
			if mapped, ok := bookingClasses[bound.CabinClass]; ok {
				cabin = mapped
			}

			amount := bound.FareSummary.FareDetailsPerAdult.TotalAmount
			if amount <= 0 {
				amount = bound.FareSummary.FareTotal.TotalAmount
			}
			fareClass := bound.SellingClass
			if bound.FareFamily != "" {
				fareClass = bound.SellingClass + "/" + bound.FareFamily
			}

			for _, seg := range bound.Segments {
				if len(seg.Legs) == 0 {
					continue
				}
				first, last := seg.Legs[0], seg.Legs[len(seg.Legs)-1]

				depStr := seg.DepartureDateTime
				if depStr == "" {
					depStr = first.DepartureDateTime
				}
				arrStr := seg.ArrivalDateTime
				if arrStr == "" {
					arrStr = last.ArrivalDateTime
				}
				dep, okDep := parseSQTime(depStr)
				arr, okArr := parseSQTime(arrStr)
				if !okDep || !okArr {
					logger.Warn("unparseable segment times, skipping",
						"source", Name, "departure", depStr, "arrival", arrStr)
					continue
				}

				// tripDuration and flightDuration are seconds.
				duration := seg.TripDuration / 60
				if duration <= 0 {
					for _, l := range seg.Legs {
						duration += l.FlightDuration / 60
					}
				}
				if duration <= 0 {
					duration = normalize.DurationMinutes(dep, arr)
				}

				airlineCode := first.MarketingAirline.Code
				if airlineCode == "" {
					airlineCode = sqCode
				}
				airlineName := first.MarketingAirline.Name
				if airlineName == "" {
					airlineName = sqName
				}
				operator := first.OperatingAirline.Code
				if operator == "" {
					operator = airlineCode
				}

				segOrigin := first.OriginAirportCode
				if segOrigin == "" {
					segOrigin = origin
				}
				segDestination := last.DestinationAirportCode
				if segDestination == "" {
					segDestination = destination
				}

				aircraft := first.Aircraft.Code
				if aircraft == "" {
					aircraft = first.Aircraft.Name
				}

				var prices []core.NormalizedPrice
				if amount > 0 {
					prices = append(prices, core.NormalizedPrice{
						Amount:    amount,
						Currency:  currency,
						Source:    core.SourceDirectCrawl,
						FareClass: fareClass,
						CrawledAt: now,
					})
				}

				flights = append(flights, core.NormalizedFlight{
					FlightNumber:    first.FlightNumber,
					AirlineCode:     airlineCode,
					AirlineName:     airlineName,
					Operator:        operator,
					Origin:          segOrigin,
					Destination:     segDestination,
					DepartureTime:   dep,
					ArrivalTime:     arr,
					DurationMinutes: duration,
					CabinClass:      cabin,
					AircraftType:    aircraft,
					Stops:           len(seg.Legs) - 1,
					Prices:          prices,
					Source:          core.SourceDirectCrawl,
					CrawledAt:       now,
				})
			}
		}
	}
	return flights
}
