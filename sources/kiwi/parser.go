package kiwi

import (
	"fmt"
	"time"

	"github.com/skyfare/skyfare/core"
)

type searchResponse struct {
	Data []itinerary `json:"data"`
}

type itinerary struct {
	Price     float64            `json:"price"`
	DeepLink  string             `json:"deep_link"`
	BagsPrice map[string]float64 `json:"bags_price"`
	CountryTo *struct {
		Currency string `json:"cur"`
	} `json:"countryTo"`
	FlyFrom  string    `json:"flyFrom"`
	FlyTo    string    `json:"flyTo"`
	DTime    int64     `json:"dTime"`
	ATime    int64     `json:"aTime"`
	Airlines []string  `json:"airlines"`
	Route    []segment `json:"route"`
}

type segment struct {
	FlyFrom          string `json:"flyFrom"`
	FlyTo            string `json:"flyTo"`
	DTime            int64  `json:"dTime"`
	ATime            int64  `json:"aTime"`
	Airline          string `json:"airline"`
	FlightNo         int    `json:"flight_no"`
	OperatingCarrier string `json:"operating_carrier"`
}

// parseSearch flattens each itinerary's route segments into
// NormalizedFlights. Kiwi prices the itinerary as a whole, so the
// itinerary price is attached to every segment.
func parseSearch(raw *searchResponse, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, it := range raw.Data {
		currency := "KRW"
		if it.CountryTo != nil && it.CountryTo.Currency != "" {
			currency = it.CountryTo.Currency
		}
		// A first checked bag priced at zero means baggage is included.
		includesBaggage := it.BagsPrice["1"] == 0 && len(it.BagsPrice) > 0

		price := core.NormalizedPrice{
			Amount:          it.Price,
			Currency:        currency,
			Source:          core.SourceKiwiAPI,
			BookingURL:      it.DeepLink,
			IncludesBaggage: includesBaggage,
			CrawledAt:       now,
		}

		route := it.Route
		if len(route) == 0 {
			airline := ""
			if len(it.Airlines) > 0 {
				airline = it.Airlines[0]
			}
			route = []segment{{
				FlyFrom:          it.FlyFrom,
				FlyTo:            it.FlyTo,
				DTime:            it.DTime,
				ATime:            it.ATime,
				Airline:          airline,
				OperatingCarrier: airline,
			}}
		}

		for _, seg := range route {
			operator := seg.OperatingCarrier
			if operator == "" {
				operator = seg.Airline
			}
			dep := time.Unix(seg.DTime, 0).UTC()
			arr := time.Unix(seg.ATime, 0).UTC()
			duration := int(arr.Sub(dep).Minutes())
			if duration < 0 {
				duration = 0
			}

			flights = append(flights, core.NormalizedFlight{
				FlightNumber:    fmt.Sprintf("%s%d", seg.Airline, seg.FlightNo),
				AirlineCode:     seg.Airline,
				Operator:        operator,
				Origin:          seg.FlyFrom,
				Destination:     seg.FlyTo,
				DepartureTime:   dep,
				ArrivalTime:     arr,
				DurationMinutes: duration,
				CabinClass:      cabin,
				Prices:          []core.NormalizedPrice{price},
				Source:          core.SourceKiwiAPI,
				CrawledAt:       now,
			})
		}
	}
	return flights
}
