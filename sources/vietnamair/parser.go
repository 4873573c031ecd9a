package vietnamair

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
)

const (
	airlineCode = "VN"
	airlineName = "Vietnam Airlines"
)

// equipmentNames supplements the API's aircraft dictionary when a code
// is missing from it.
var equipmentNames = map[string]string{
	"320": "Airbus A320",
	"321": "Airbus A321",
	"350": "Airbus A350",
	"359": "Airbus A350-900",
	"787": "Boeing 787",
	"789": "Boeing 787-9",
	"333": "Airbus A330-300",
	"77W": "Boeing 777-300ER",
}

// dayNames indexes weekdays the way operatingDays spells them,
// Monday-first.
var dayNames = [7]string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// flexString tolerates fields the middleware serializes as either a
// JSON string or a bare number (flight numbers in particular).
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if string(b) == "null" {
		*s = ""
		return nil
	}
	*s = flexString(b)
	return nil
}

type scheduleLocation struct {
	LocationCode          string     `json:"locationCode"`
	DateTime              string     `json:"dateTime"`
	DateTimeZoneGmtOffset *float64   `json:"dateTimeZoneGmtOffset"`
	Terminal              flexString `json:"terminal"`
}

type flightInfo struct {
	MarketingAirlineCode  string           `json:"marketingAirlineCode"`
	MarketingFlightNumber flexString       `json:"marketingFlightNumber"`
	OperatingAirlineCode  string           `json:"operatingAirlineCode"`
	OperatingAirlineName  string           `json:"operatingAirlineName"`
	AirEquipmentCode      string           `json:"airEquipmentCode"`
	DepartureLocation     scheduleLocation `json:"departureLocation"`
	ArrivalLocation       scheduleLocation `json:"arrivalLocation"`
	// Duration is in seconds.
	Duration int `json:"duration"`
}

type scheduleLeg struct {
	FlightInfo    flightInfo `json:"flightInfo"`
	NumberOfStops int        `json:"numberOfStops"`
	OperatingDays []string   `json:"operatingDays"`
	Validity      struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"validityPeriod"`
}

type scheduleItem struct {
	// ConnectedFlights holds the itinerary's legs; more than one
	// means a connection through a hub.
	ConnectedFlights []scheduleLeg `json:"connectedFlights"`
}

type scheduleResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		DepartureFlight struct {
			Dictionaries struct {
				Aircraft map[string]string `json:"aircraft"`
				Airline  map[string]string `json:"airline"`
			} `json:"dictionaries"`
			ScheduleItems []scheduleItem `json:"scheduleItems"`
		} `json:"departureFlight"`
	} `json:"data"`
}

type bestPriceEntry struct {
	DepartureDate string `json:"departureDate"`
	ReturnDate    string `json:"returnDate"`
	Price         []struct {
		Base         flexString `json:"base"`
		Total        flexString `json:"total"`
		TotalTaxes   flexString `json:"totalTaxes"`
		CurrencyCode string     `json:"currencyCode"`
	} `json:"price"`
}

type bestPriceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Prices       []bestPriceEntry `json:"prices"`
		Dictionaries struct {
			Currency map[string]struct {
				DecimalPlaces int    `json:"decimalPlaces"`
				Name          string `json:"name"`
			} `json:"currency"`
		} `json:"dictionaries"`
	} `json:"data"`
}

// parseLocalTime converts the middleware's local airport timestamps to
// UTC using the accompanying GMT offset. Vietnam's offset is the
// default when the field is absent.
func parseLocalTime(value string, offset *float64) (time.Time, error) {
	local, err := time.Parse("2006-01-02T15:04:05", value)
	if err != nil {
		local, err = time.Parse("2006-01-02T15:04", value)
		if err != nil {
			return time.Time{}, err
		}
	}
	hours := 7.0
	if offset != nil {
		hours = *offset
	}
	return local.Add(-time.Duration(hours * float64(time.Hour))).UTC(), nil
}

// legMatchesDate reports whether the itinerary's first leg departs on
// the target date, either literally or through its validity window and
// operating weekdays.
func legMatchesDate(leg scheduleLeg, targetDate, targetDay string) bool {
	if strings.HasPrefix(leg.FlightInfo.DepartureLocation.DateTime, targetDate) {
		return true
	}
	if targetDay == "" {
		return false
	}
	start, end := leg.Validity.Start, leg.Validity.End
	if start == "" || end == "" {
		return false
	}
	if len(start) > 10 {
		start = start[:10]
	}
	if len(end) > 10 {
		end = end[:10]
	}
	if start > targetDate || targetDate > end {
		return false
	}
	for _, day := range leg.OperatingDays {
		if strings.EqualFold(day, targetDay) {
			return true
		}
	}
	return false
}

func resolveAircraft(code string, dict map[string]string) string {
	if name, ok := dict[code]; ok {
		return name
	}
	if name, ok := equipmentNames[code]; ok {
		return name
	}
	return code
}

// parseSchedule turns schedule itineraries departing on targetDate
// into priceless flights. Connecting itineraries collapse to a single
// row spanning origin to destination with slash-joined flight numbers.
func parseSchedule(raw *scheduleResponse, targetDate string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	departure := raw.Data.DepartureFlight
	airlineDict := departure.Dictionaries.Airline
	aircraftDict := departure.Dictionaries.Aircraft

	targetDay := ""
	if parsed, err := time.Parse("2006-01-02", targetDate); err == nil {
		// time.Weekday is Sunday-based, dayNames Monday-based.
		targetDay = dayNames[(int(parsed.Weekday())+6)%7]
	}

	seen := make(map[string]struct{})
	var flights []core.NormalizedFlight

	for _, item := range departure.ScheduleItems {
		if len(item.ConnectedFlights) == 0 {
			continue
		}
		first := item.ConnectedFlights[0]
		if !legMatchesDate(first, targetDate, targetDay) {
			continue
		}
		last := item.ConnectedFlights[len(item.ConnectedFlights)-1]

		depLoc := first.FlightInfo.DepartureLocation
		arrLoc := last.FlightInfo.ArrivalLocation
		if depLoc.DateTime == "" || arrLoc.DateTime == "" {
			continue
		}
		departureTime, err := parseLocalTime(depLoc.DateTime, depLoc.DateTimeZoneGmtOffset)
		if err != nil {
			logger.Warn("invalid schedule departure time, skipping",
				"source", Name, "value", depLoc.DateTime)
			continue
		}
		arrivalTime, err := parseLocalTime(arrLoc.DateTime, arrLoc.DateTimeZoneGmtOffset)
		if err != nil {
			logger.Warn("invalid schedule arrival time, skipping",
				"source", Name, "value", arrLoc.DateTime)
			continue
		}

		// Airborne durations for direct flights, endpoint delta for
		// connections so layovers count.
		durationMinutes := 0
		for _, leg := range item.ConnectedFlights {
			durationMinutes += leg.FlightInfo.Duration / 60
		}
		if durationMinutes == 0 || len(item.ConnectedFlights) > 1 {
			durationMinutes = int(arrivalTime.Sub(departureTime).Minutes())
		}
		if durationMinutes <= 0 {
			continue
		}

		marketing := first.FlightInfo.MarketingAirlineCode
		if marketing == "" {
			marketing = airlineCode
		}
		flightNumber := marketing + string(first.FlightInfo.MarketingFlightNumber)
		if len(item.ConnectedFlights) > 1 {
			numbers := make([]string, 0, len(item.ConnectedFlights))
			for _, leg := range item.ConnectedFlights {
				numbers = append(numbers, leg.FlightInfo.MarketingAirlineCode+string(leg.FlightInfo.MarketingFlightNumber))
			}
			flightNumber = strings.Join(numbers, "/")
		}

		dedup := flightNumber + ":" + depLoc.DateTime
		if _, ok := seen[dedup]; ok {
			continue
		}
		seen[dedup] = struct{}{}

		operator := first.FlightInfo.OperatingAirlineCode
		if operator == "" {
			operator = marketing
		}
		name := airlineDict[marketing]
		if name == "" {
			name = first.FlightInfo.OperatingAirlineName
		}
		if name == "" {
			name = airlineName
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:    flightNumber,
			AirlineCode:     marketing,
			AirlineName:     name,
			Operator:        operator,
			Origin:          depLoc.LocationCode,
			Destination:     arrLoc.LocationCode,
			DepartureTime:   departureTime,
			ArrivalTime:     arrivalTime,
			DurationMinutes: durationMinutes,
			CabinClass:      cabin,
			AircraftType:    resolveAircraft(first.FlightInfo.AirEquipmentCode, aircraftDict),
			Stops:           len(item.ConnectedFlights) - 1,
			Source:          core.SourceDirectCrawl,
			CrawledAt:       now,
		})
	}
	return flights
}

// parseBestPrices maps each departure date to its lowest fare, with
// amounts descaled by the currency dictionary's decimal places.
func parseBestPrices(raw *bestPriceResponse) map[string]core.NormalizedPrice {
	now := time.Now().UTC()
	currencies := raw.Data.Dictionaries.Currency
	priceMap := make(map[string]core.NormalizedPrice)

	for _, entry := range raw.Data.Prices {
		if entry.DepartureDate == "" || len(entry.Price) == 0 {
			continue
		}
		info := entry.Price[0]
		currency := info.CurrencyCode
		if currency == "" {
			currency = "KRW"
		}
		total, err := strconv.ParseFloat(string(info.Total), 64)
		if err != nil || total <= 0 {
			continue
		}
		if meta, ok := currencies[currency]; ok && meta.DecimalPlaces > 0 {
			total /= math.Pow10(meta.DecimalPlaces)
		}
		priceMap[entry.DepartureDate] = core.NormalizedPrice{
			Amount:    total,
			Currency:  currency,
			Source:    core.SourceDirectCrawl,
			CrawledAt: now,
		}
	}
	return priceMap
}

// attachPrices joins the per-date fare calendar onto schedule flights.
// The calendar keys by local departure date while flight times are
// UTC, so the searched date is tried first, then the UTC date and the
// day after it.
func attachPrices(flights []core.NormalizedFlight, priceMap map[string]core.NormalizedPrice, targetDate string) {
	for i := range flights {
		if len(flights[i].Prices) > 0 {
			continue
		}
		if price, ok := priceMap[targetDate]; ok {
			flights[i].Prices = append(flights[i].Prices, price)
			continue
		}
		utcDate := flights[i].DepartureTime.Format("2006-01-02")
		if price, ok := priceMap[utcDate]; ok {
			flights[i].Prices = append(flights[i].Prices, price)
			continue
		}
		nextDay := flights[i].DepartureTime.AddDate(0, 0, 1).Format("2006-01-02")
		if price, ok := priceMap[nextDay]; ok {
			flights[i].Prices = append(flights[i].Prices, price)
		}
	}
}
