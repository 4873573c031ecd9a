package qatar

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	airlineCode = "QR"
	airlineName = "Qatar Airways"
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

// parseIntercepted runs every parsing strategy over every captured
// body and dedupes the union. The booking backend answers with
// different shapes depending on which API the widget happened to call.
func parseIntercepted(bodies [][]byte, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	var flights []core.NormalizedFlight
	for _, body := range bodies {
		var envelope map[string]any
		if err := json.Unmarshal(body, &envelope); err != nil {
			continue
		}
		flights = append(flights, parseOfferSearch(envelope, origin, destination, cabin)...)
		flights = append(flights, parseFlightList(envelope, origin, destination, cabin)...)
		flights = append(flights, parseCalendarFares(envelope, origin, destination, cabin)...)
		flights = append(flights, parseNDCOffers(envelope, origin, destination, cabin)...)
	}

	seen := make(map[string]struct{}, len(flights))
	unique := flights[:0]
	for _, f := range flights {
		key := f.FlightNumber + ":" + f.DepartureTime.Format(time.RFC3339)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, f)
	}
	return unique
}

func dataSection(envelope map[string]any) map[string]any {
	if m, ok := envelope["data"].(map[string]any); ok {
		return m
	}
	return nil
}

func listAt(envelope map[string]any, key string) []any {
	if items, ok := envelope[key].([]any); ok {
		return items
	}
	if data := dataSection(envelope); data != nil {
		if items, ok := data[key].([]any); ok {
			return items
		}
	}
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

// airportCode handles both "origin": "ICN" and "origin": {"code": "ICN"}.
func airportCode(seg map[string]any, field, fallback string) string {
	switch v := seg[field].(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		for _, key := range []string{"code", "iataCode", "airport"} {
			if s, _ := v[key].(string); s != "" {
				return s
			}
		}
	}
	return fallback
}

func parseOfferTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func segmentTime(seg map[string]any, flat, nested string) (time.Time, bool) {
	if t, ok := parseOfferTime(asString(seg[flat])); ok {
		return t, true
	}
	if m, ok := seg[nested].(map[string]any); ok {
		for _, key := range []string{"dateTime", "at", "time"} {
			if t, ok := parseOfferTime(asString(m[key])); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func looseAmount(v any) (float64, bool) {
	switch a := v.(type) {
	case float64:
		return a, a > 0
	case string:
		if f, err := strconv.ParseFloat(strings.ReplaceAll(a, ",", ""), 64); err == nil {
			return f, f > 0
		}
	}
	return 0, false
}

func offerAmount(price map[string]any) (float64, string, bool) {
	for _, key := range []string{"amount", "total", "grandTotal"} {
		if amount, ok := looseAmount(price[key]); ok {
			currency := asString(price["currency"])
			if currency == "" {
				currency = asString(price["currencyCode"])
			}
			if currency == "" {
				currency = "KRW"
			}
			return amount, currency, true
		}
	}
	return 0, "", false
}

func segmentDuration(seg map[string]any, dep, arr time.Time) int {
	if raw := asString(seg["duration"]); raw != "" {
		if minutes, err := normalize.ParseISODuration(raw); err == nil {
			return minutes
		}
		if minutes, err := strconv.Atoi(raw); err == nil {
			return minutes
		}
	}
	if arr.After(dep) {
		return int(arr.Sub(dep).Minutes())
	}
	return 0
}

// parseOfferSearch handles the qoreservices shape:
// data.offers[].journeys[].segments[] with totalPrice at offer level.
func parseOfferSearch(envelope map[string]any, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, rawOffer := range listAt(envelope, "offers") {
		offer, ok := rawOffer.(map[string]any)
		if !ok {
			continue
		}

		var prices []core.NormalizedPrice
		for _, key := range []string{"totalPrice", "price"} {
			priceData, ok := offer[key].(map[string]any)
			if !ok {
				continue
			}
			if amount, currency, ok := offerAmount(priceData); ok {
				fareClass := ""
				if fd, ok := offer["fareDetails"].(map[string]any); ok {
					fareClass = asString(fd["fareClass"])
					if fareClass == "" {
						fareClass = asString(fd["fareType"])
					}
				}
				prices = append(prices, core.NormalizedPrice{
					Amount:    amount,
					Currency:  currency,
					Source:    core.SourceDirectCrawl,
					FareClass: fareClass,
					CrawledAt: now,
				})
				break
			}
		}

		journeys, _ := offer["journeys"].([]any)
		if len(journeys) == 0 {
			if segs, ok := offer["segments"].([]any); ok {
				journeys = []any{map[string]any{"segments": segs}}
			}
		}

		for _, rawJourney := range journeys {
			journey, ok := rawJourney.(map[string]any)
			if !ok {
				continue
			}
			if flight, ok := journeyFlight(journey, origin, destination, cabin, prices, now); ok {
				flights = append(flights, flight)
			}
		}
	}
	return flights
}

func journeyFlight(journey map[string]any, origin, destination string, cabin core.CabinClass, prices []core.NormalizedPrice, now time.Time) (core.NormalizedFlight, bool) {
	segments, _ := journey["segments"].([]any)
	if len(segments) == 0 {
		return core.NormalizedFlight{}, false
	}
	first, ok := segments[0].(map[string]any)
	if !ok {
		return core.NormalizedFlight{}, false
	}
	last, ok := segments[len(segments)-1].(map[string]any)
	if !ok {
		last = first
	}

	dep, ok := segmentTime(first, "departureDateTime", "departure")
	if !ok {
		return core.NormalizedFlight{}, false
	}
	arr, ok := segmentTime(last, "arrivalDateTime", "arrival")
	if !ok {
		arr = dep
	}

	carrier := airportCode(first, "carrierCode", airlineCode)
	if len(carrier) != 2 {
		carrier = airlineCode
	}
	segOrigin := airportCode(first, "origin", airportCode(first, "departure", origin))
	segDest := airportCode(last, "destination", airportCode(last, "arrival", destination))

	flightNumber := asString(first["flightNumber"])
	if flightNumber == "" {
		flightNumber = asString(first["number"])
	}
	if flightNumber != "" && !strings.HasPrefix(flightNumber, carrier) {
		flightNumber = carrier + flightNumber
	}
	if flightNumber == "" {
		flightNumber = core.SyntheticFlightNumber(airlineCode, segOrigin, segDest)
	}

	minutes := segmentDuration(first, dep, arr)
	if journeyDur := asString(journey["duration"]); minutes == 0 && journeyDur != "" {
		if m, err := normalize.ParseISODuration(journeyDur); err == nil {
			minutes = m
		}
	}

	segCabin := cabin
	for _, key := range []string{"cabinClass", "cabin", "bookingClass"} {
		if mapped, ok := cabinMap[strings.ToUpper(asString(first[key]))]; ok {
			segCabin = mapped
			break
		}
	}

	aircraft := asString(first["aircraftCode"])
	if aircraft == "" {
		aircraft = airportCode(first, "aircraft", "")
	}

	return core.NormalizedFlight{
		FlightNumber:    flightNumber,
		AirlineCode:     carrier,
		AirlineName:     airlineName,
		Operator:        carrier,
		Origin:          segOrigin,
		Destination:     segDest,
		DepartureTime:   dep,
		ArrivalTime:     arr,
		DurationMinutes: minutes,
		CabinClass:      segCabin,
		AircraftType:    aircraft,
		Stops:           len(segments) - 1,
		Prices:          prices,
		Source:          core.SourceDirectCrawl,
		CrawledAt:       now,
	}, true
}

// parseFlightList handles the plain flights array shape with per-fare
// prices inline.
func parseFlightList(envelope map[string]any, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, raw := range listAt(envelope, "flights") {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		flightNumber := asString(item["flightNumber"])
		if flightNumber == "" {
			continue
		}
		if !strings.HasPrefix(flightNumber, airlineCode) {
			flightNumber = airlineCode + flightNumber
		}

		dep, ok := segmentTime(item, "departureDateTime", "departure")
		if !ok {
			continue
		}
		arr, ok := segmentTime(item, "arrivalDateTime", "arrival")
		if !ok {
			arr = dep
		}

		var prices []core.NormalizedPrice
		fares, _ := item["fares"].([]any)
		if fares == nil {
			fares, _ = item["prices"].([]any)
		}
		for _, rawFare := range fares {
			fare, ok := rawFare.(map[string]any)
			if !ok {
				continue
			}
			for _, key := range []string{"price", "amount", "total"} {
				if amount, ok := looseAmount(fare[key]); ok {
					currency := asString(fare["currency"])
					if currency == "" {
						currency = "KRW"
					}
					fareClass := asString(fare["cabin"])
					if fareClass == "" {
						fareClass = asString(fare["fareClass"])
					}
					prices = append(prices, core.NormalizedPrice{
						Amount:    amount,
						Currency:  currency,
						Source:    core.SourceDirectCrawl,
						FareClass: fareClass,
						CrawledAt: now,
					})
					break
				}
			}
		}

		stops := 0
		if s, ok := item["stops"].(float64); ok {
			stops = int(s)
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:    flightNumber,
			AirlineCode:     airlineCode,
			AirlineName:     airlineName,
			Operator:        airlineCode,
			Origin:          airportCode(item, "departure", origin),
			Destination:     airportCode(item, "arrival", destination),
			DepartureTime:   dep,
			ArrivalTime:     arr,
			DurationMinutes: segmentDuration(item, dep, arr),
			CabinClass:      cabin,
			AircraftType:    asString(item["aircraft"]),
			Stops:           stops,
			Prices:          prices,
			Source:          core.SourceDirectCrawl,
			CrawledAt:       now,
		})
	}
	return flights
}

// parseCalendarFares handles lowest-fare calendar responses, emitting
// synthetic rows.
func parseCalendarFares(envelope map[string]any, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	var entries []any
	for _, key := range []string{"calendar", "dailyFares", "lowFares"} {
		if entries = listAt(envelope, key); entries != nil {
			break
		}
	}

	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		date, ok := parseOfferTime(asString(entry["date"]))
		if !ok {
			continue
		}

		var amount float64
		found := false
		for _, key := range []string{"lowestFare", "price", "amount", "total"} {
			if amount, found = looseAmount(entry[key]); found {
				break
			}
		}
		if !found {
			continue
		}
		currency := asString(entry["currency"])
		if currency == "" {
			currency = "KRW"
		}

		flights = append(flights, normalize.SyntheticCalendarFlight(
			airlineCode, airlineName, origin, destination, date,
			core.NormalizedPrice{
				Amount:    amount,
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				FareClass: asString(entry["fareClass"]),
				CrawledAt: now,
			},
			cabin, core.SourceDirectCrawl,
		))
	}
	return flights
}

// parseNDCOffers handles the Amadeus-style flightOffers shape:
// itineraries[].segments[] with departure/arrival "at" timestamps.
func parseNDCOffers(envelope map[string]any, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, rawOffer := range listAt(envelope, "flightOffers") {
		offer, ok := rawOffer.(map[string]any)
		if !ok {
			continue
		}

		var prices []core.NormalizedPrice
		if priceData, ok := offer["price"].(map[string]any); ok {
			if amount, currency, ok := offerAmount(priceData); ok {
				prices = append(prices, core.NormalizedPrice{
					Amount:    amount,
					Currency:  currency,
					Source:    core.SourceDirectCrawl,
					CrawledAt: now,
				})
			}
		}

		itineraries, _ := offer["itineraries"].([]any)
		for _, rawItin := range itineraries {
			itin, ok := rawItin.(map[string]any)
			if !ok {
				continue
			}
			if flight, ok := journeyFlight(itin, origin, destination, cabin, prices, now); ok {
				flights = append(flights, flight)
			}
		}
	}
	return flights
}
