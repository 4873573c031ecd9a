package ana

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/skyfare/skyfare/core"
)

const (
	airlineCode = "NH"
	airlineName = "All Nippon Airways"
)

var cabinMap = map[string]core.CabinClass{
	"Y":               core.Economy,
	"W":               core.PremiumEconomy,
	"C":               core.Business,
	"F":               core.First,
	"ECONOMY":         core.Economy,
	"PREMIUM_ECONOMY": core.PremiumEconomy,
	"PREMIUM ECONOMY": core.PremiumEconomy,
	"BUSINESS":        core.Business,
	"FIRST":           core.First,
}

// listKeys are the envelope keys the booking engine has been seen to
// put segment arrays under. The API is undocumented, so extraction is
// best-effort over all of them.
var listKeys = []string{
	"flightList", "flights", "segments", "itineraries", "results",
	"outbound", "inbound", "outboundFlights", "inboundFlights",
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})`)

// parseAPIResponses walks every intercepted JSON body for flight
// segments, wherever the engine nested them.
func parseAPIResponses(bodies [][]byte, origin, destination string, departureDate time.Time, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight
	for _, body := range bodies {
		var envelope map[string]any
		if err := json.Unmarshal(body, &envelope); err != nil {
			continue
		}
		extractFromMap(envelope, &flights, origin, destination, departureDate, cabin, now)
	}
	return flights
}

func extractFromMap(data map[string]any, flights *[]core.NormalizedFlight, origin, destination string, departureDate time.Time, cabin core.CabinClass, now time.Time) {
	for _, key := range listKeys {
		items, ok := data[key].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			seg, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if flight, ok := parseSegment(seg, origin, destination, departureDate, cabin, now); ok {
				*flights = append(*flights, flight)
			}
		}
	}

	switch nested := data["data"].(type) {
	case map[string]any:
		extractFromMap(nested, flights, origin, destination, departureDate, cabin, now)
	case []any:
		for _, item := range nested {
			if m, ok := item.(map[string]any); ok {
				extractFromMap(m, flights, origin, destination, departureDate, cabin, now)
			}
		}
	}
}

func stringField(seg map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := seg[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func nestedString(seg map[string]any, outer, inner string) string {
	if m, ok := seg[outer].(map[string]any); ok {
		if s, ok := m[inner].(string); ok {
			return s
		}
	}
	return ""
}

// parseSegmentTime accepts ISO timestamps or bare HH:MM clocks, the
// latter anchored to the departure date.
func parseSegmentTime(value string, departureDate time.Time) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	if m := clockPattern.FindStringSubmatch(value); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return time.Date(departureDate.Year(), departureDate.Month(), departureDate.Day(),
			hour, minute, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

var nonNumeric = regexp.MustCompile(`[^\d.]`)

func extractPrice(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if v > 0 {
			return v, true
		}
	case string:
		cleaned := nonNumeric.ReplaceAllString(v, "")
		if amount, err := strconv.ParseFloat(cleaned, 64); err == nil && amount > 0 {
			return amount, true
		}
	}
	return 0, false
}

func parseSegment(seg map[string]any, origin, destination string, departureDate time.Time, cabin core.CabinClass, now time.Time) (core.NormalizedFlight, bool) {
	flightNumber := stringField(seg, "flightNumber", "flight_number", "flightNo", "flightNum", "number")
	if flightNumber != "" && !strings.HasPrefix(flightNumber, airlineCode) {
		flightNumber = airlineCode + flightNumber
	}
	if flightNumber == "" {
		carrier := stringField(seg, "carrier", "airlineCode")
		number := stringField(seg, "number", "flightNo")
		if carrier != "" && number != "" {
			flightNumber = carrier + number
		}
	}
	if flightNumber == "" {
		return core.NormalizedFlight{}, false
	}

	segOrigin := stringField(seg, "departureAirport", "origin", "dep")
	if segOrigin == "" {
		segOrigin = nestedString(seg, "departure", "airport")
	}
	if segOrigin == "" {
		segOrigin = origin
	}
	segDest := stringField(seg, "arrivalAirport", "destination", "arr")
	if segDest == "" {
		segDest = nestedString(seg, "arrival", "airport")
	}
	if segDest == "" {
		segDest = destination
	}

	depRaw := stringField(seg, "departureTime", "depTime", "departureDateTime")
	if depRaw == "" {
		depRaw = nestedString(seg, "departure", "time")
	}
	arrRaw := stringField(seg, "arrivalTime", "arrTime", "arrivalDateTime")
	if arrRaw == "" {
		arrRaw = nestedString(seg, "arrival", "time")
	}

	departure, ok := parseSegmentTime(depRaw, departureDate)
	if !ok {
		departure = time.Date(departureDate.Year(), departureDate.Month(), departureDate.Day(), 0, 0, 0, 0, time.UTC)
	}
	arrival, ok := parseSegmentTime(arrRaw, departureDate)
	if !ok {
		arrival = departure
	}

	minutes := int(arrival.Sub(departure).Minutes())
	if minutes < 0 {
		minutes += 24 * 60
	}
	if minutes < 0 {
		minutes = 0
	}

	segCabin := cabin
	if mapped, ok := cabinMap[strings.ToUpper(stringField(seg, "cabinClass", "cabin", "bookingClass"))]; ok {
		segCabin = mapped
	}

	stops := 0
	switch v := seg["stops"].(type) {
	case float64:
		stops = int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			stops = n
		}
	}

	var prices []core.NormalizedPrice
	for _, key := range []string{"totalPrice", "price", "fare", "amount"} {
		if amount, ok := extractPrice(seg[key]); ok {
			currency := stringField(seg, "currency", "currencyCode")
			if currency == "" {
				currency = "JPY"
			}
			prices = append(prices, core.NormalizedPrice{
				Amount:    amount,
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				FareClass: stringField(seg, "fareBasis", "fareFamily"),
				CrawledAt: now,
			})
			break
		}
	}

	return core.NormalizedFlight{
		FlightNumber:    flightNumber,
		AirlineCode:     airlineCode,
		AirlineName:     airlineName,
		Operator:        stringField(seg, "operatingCarrier", "operator"),
		Origin:          segOrigin,
		Destination:     segDest,
		DepartureTime:   departure,
		ArrivalTime:     arrival,
		DurationMinutes: minutes,
		CabinClass:      segCabin,
		AircraftType:    stringField(seg, "aircraftType", "aircraft", "equipmentType"),
		Stops:           stops,
		Prices:          prices,
		Source:          core.SourceDirectCrawl,
		CrawledAt:       now,
	}, true
}
