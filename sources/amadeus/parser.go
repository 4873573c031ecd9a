package amadeus

import (
	"strconv"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

var cabinMap = map[string]core.CabinClass{
	"ECONOMY":         core.Economy,
	"PREMIUM_ECONOMY": core.PremiumEconomy,
	"BUSINESS":        core.Business,
	"FIRST":           core.First,
}

type offersResponse struct {
	Data []offer `json:"data"`
}

type offer struct {
	Itineraries []itinerary `json:"itineraries"`
	Price       struct {
		GrandTotal string `json:"grandTotal"`
		Total      string `json:"total"`
		Currency   string `json:"currency"`
	} `json:"price"`
	TravelerPricings []struct {
		FareDetailsBySegment []struct {
			Cabin               string `json:"cabin"`
			Class               string `json:"class"`
			IncludedCheckedBags struct {
				Quantity int `json:"quantity"`
				Weight   int `json:"weight"`
			} `json:"includedCheckedBags"`
		} `json:"fareDetailsBySegment"`
	} `json:"travelerPricings"`
}

type itinerary struct {
	Duration string    `json:"duration"`
	Segments []segment `json:"segments"`
}

type segment struct {
	Departure struct {
		IataCode string `json:"iataCode"`
		At       string `json:"at"`
	} `json:"departure"`
	Arrival struct {
		IataCode string `json:"iataCode"`
		At       string `json:"at"`
	} `json:"arrival"`
	CarrierCode string `json:"carrierCode"`
	Number      string `json:"number"`
	Operating   struct {
		CarrierCode string `json:"carrierCode"`
	} `json:"operating"`
	Aircraft struct {
		Code string `json:"code"`
	} `json:"aircraft"`
}

// parseSegmentTime handles Amadeus local datetimes, which come without
// a zone designator ("2026-09-15T08:30:00").
func parseSegmentTime(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseOffers converts the data array of a flight-offers search into
// normalized flights, one per offer using the outbound itinerary.
// Connections keep the first segment's flight number with stops set to
// segments-1, matching how the merge layer keys flights.
func parseOffers(offers []offer, requested core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, off := range offers {
		if len(off.Itineraries) == 0 {
			continue
		}
		itin := off.Itineraries[0]
		if len(itin.Segments) == 0 {
			continue
		}
		first, last := itin.Segments[0], itin.Segments[len(itin.Segments)-1]

		dep, okDep := parseSegmentTime(first.Departure.At)
		arr, okArr := parseSegmentTime(last.Arrival.At)
		if !okDep || !okArr {
			logger.Warn("unparseable offer times, skipping",
				"source", Name,
				"departure", first.Departure.At,
				"arrival", last.Arrival.At)
			continue
		}

		total := off.Price.GrandTotal
		if total == "" {
			total = off.Price.Total
		}
		amount, err := strconv.ParseFloat(total, 64)
		if err != nil || amount <= 0 {
			continue
		}
		currency := off.Price.Currency
		if currency == "" {
			currency = "KRW"
		}

		duration, derr := normalize.ParseISODuration(itin.Duration)
		if derr != nil || duration <= 0 {
			duration = normalize.DurationMinutes(dep, arr)
		}

		cabin := requested
		fareClass := ""
		includesBaggage := false
		if len(off.TravelerPricings) > 0 && len(off.TravelerPricings[0].FareDetailsBySegment) > 0 {
			detail := off.TravelerPricings[0].FareDetailsBySegment[0]
			if mapped, ok := cabinMap[detail.Cabin]; ok {
				cabin = mapped
			}
			fareClass = detail.Class
			bags := detail.IncludedCheckedBags
			includesBaggage = bags.Quantity > 0 || bags.Weight > 0
		}

		operator := first.Operating.CarrierCode
		if operator == "" {
			operator = first.CarrierCode
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:    first.CarrierCode + first.Number,
			AirlineCode:     first.CarrierCode,
			Operator:        operator,
			Origin:          first.Departure.IataCode,
			Destination:     last.Arrival.IataCode,
			DepartureTime:   dep,
			ArrivalTime:     arr,
			DurationMinutes: duration,
			CabinClass:      cabin,
			AircraftType:    first.Aircraft.Code,
			Stops:           len(itin.Segments) - 1,
			Prices: []core.NormalizedPrice{{
				Amount:          amount,
				Currency:        currency,
				Source:          core.SourceGDS,
				FareClass:       fareClass,
				IncludesBaggage: includesBaggage,
				CrawledAt:       now,
			}},
			Source:    core.SourceGDS,
			CrawledAt: now,
		})
	}
	return flights
}
