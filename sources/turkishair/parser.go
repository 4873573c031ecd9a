package turkishair

import (
	"strconv"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	airlineCode = "TK"
	airlineName = "Turkish Airlines"
)

type statusDetail struct {
	Code              string `json:"code"`
	TranslatedMessage string `json:"translatedMessage"`
}

type priceAmount struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currencyCode"`
}

type brand struct {
	BrandCode string       `json:"brandCode"`
	BrandName string       `json:"brandName"`
	Price     *priceAmount `json:"price"`
	FareClass string       `json:"fareClass"`
}

type fareCabin struct {
	Status        string       `json:"status"`
	StartingPrice *priceAmount `json:"startingPrice"`
	BrandList     []brand      `json:"brandList"`
}

type segment struct {
	DepartureAirportCode  string `json:"departureAirportCode"`
	ArrivalAirportCode    string `json:"arrivalAirportCode"`
	DepartureDateTime     string `json:"departureDateTime"`
	ArrivalDateTime       string `json:"arrivalDateTime"`
	Duration              string `json:"duration"`
	MarketingAirlineCode  string `json:"marketingAirlineCode"`
	MarketingFlightNumber string `json:"marketingFlightNumber"`
	OperatingAirlineCode  string `json:"operatingAirlineCode"`
	EquipmentCode         string `json:"equipmentCode"`
}

type odOption struct {
	SegmentList   []segment            `json:"segmentList"`
	FareCategory  map[string]fareCabin `json:"fareCategory"`
	TotalDuration string               `json:"totalDuration"`
	StopCount     *int                 `json:"stopCount"`
}

type odInformation struct {
	DepartureDate               string     `json:"departureDate"`
	OriginDestinationOptionList []odOption `json:"originDestinationOptionList"`
}

type dailyPrice struct {
	Date      string       `json:"date"`
	BestPrice bool         `json:"bestPrice"`
	Price     *priceAmount `json:"price"`
}

type webData struct {
	DailyPriceList                   []dailyPrice    `json:"dailyPriceList"`
	OriginDestinationInformationList []odInformation `json:"originDestinationInformationList"`
}

type webEnvelope struct {
	Success          bool           `json:"success"`
	StatusDetailList []statusDetail `json:"statusDetailList"`
	Data             webData        `json:"data"`
}

func parseTime(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "02.01.2006 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func cabinPrices(cabinData fareCabin, now time.Time) []core.NormalizedPrice {
	if cabinData.Status != "AVAILABLE" {
		return nil
	}
	var prices []core.NormalizedPrice
	if cabinData.StartingPrice != nil && cabinData.StartingPrice.Amount > 0 {
		prices = append(prices, core.NormalizedPrice{
			Amount:    cabinData.StartingPrice.Amount,
			Currency:  cabinData.StartingPrice.CurrencyCode,
			Source:    core.SourceDirectCrawl,
			CrawledAt: now,
		})
	}
	for _, b := range cabinData.BrandList {
		if b.Price == nil || b.Price.Amount <= 0 {
			continue
		}
		fareClass := b.FareClass
		if fareClass == "" {
			fareClass = b.BrandCode
		}
		prices = append(prices, core.NormalizedPrice{
			Amount:    b.Price.Amount,
			Currency:  b.Price.CurrencyCode,
			Source:    core.SourceDirectCrawl,
			FareClass: fareClass,
			CrawledAt: now,
		})
	}
	return prices
}

// parseFlightMatrix emits one flight per itinerary option with the
// starting price and the EcoFly/ExtraFly/PrimeFly brand ladder.
func parseFlightMatrix(envelope *webEnvelope, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, odInfo := range envelope.Data.OriginDestinationInformationList {
		for _, option := range odInfo.OriginDestinationOptionList {
			if len(option.SegmentList) == 0 {
				continue
			}
			first := option.SegmentList[0]
			last := option.SegmentList[len(option.SegmentList)-1]

			dep, ok := parseTime(first.DepartureDateTime)
			if !ok {
				continue
			}
			arr, ok := parseTime(last.ArrivalDateTime)
			if !ok {
				arr = dep
			}

			duration := option.TotalDuration
			if duration == "" {
				duration = first.Duration
			}
			minutes, err := normalize.ParseISODuration(duration)
			if err != nil && arr.After(dep) {
				minutes = int(arr.Sub(dep).Minutes())
			}

			carrier := first.MarketingAirlineCode
			if carrier == "" {
				carrier = airlineCode
			}
			operator := first.OperatingAirlineCode
			if operator == "" {
				operator = carrier
			}

			// The matrix exposes only ECONOMY and BUSINESS buckets.
			cabinKey := "ECONOMY"
			if cabin == core.Business || cabin == core.First {
				cabinKey = "BUSINESS"
			}
			prices := cabinPrices(option.FareCategory[cabinKey], now)
			if len(prices) == 0 {
				altKey := "BUSINESS"
				if cabinKey == "BUSINESS" {
					altKey = "ECONOMY"
				}
				if prices = cabinPrices(option.FareCategory[altKey], now); len(prices) > 0 {
					cabinKey = altKey
				}
			}
			mappedCabin := core.Economy
			if cabinKey == "BUSINESS" {
				mappedCabin = core.Business
			}

			stops := len(option.SegmentList) - 1
			if option.StopCount != nil {
				stops = *option.StopCount
			}

			flights = append(flights, core.NormalizedFlight{
				FlightNumber:    carrier + first.MarketingFlightNumber,
				AirlineCode:     carrier,
				AirlineName:     airlineName,
				Operator:        operator,
				Origin:          first.DepartureAirportCode,
				Destination:     last.ArrivalAirportCode,
				DepartureTime:   dep,
				ArrivalTime:     arr,
				DurationMinutes: minutes,
				CabinClass:      mappedCabin,
				AircraftType:    first.EquipmentCode,
				Stops:           stops,
				Prices:          prices,
				Source:          core.SourceDirectCrawl,
				CrawledAt:       now,
			})
		}
	}
	return flights
}

// parseCheapestPrices turns the daily fare calendar into synthetic
// rows, one per day with a positive price.
func parseCheapestPrices(envelope *webEnvelope, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, day := range envelope.Data.DailyPriceList {
		if day.Price == nil || day.Price.Amount <= 0 {
			continue
		}
		date, ok := parseTime(day.Date)
		if !ok {
			continue
		}
		flights = append(flights, normalize.SyntheticCalendarFlight(
			airlineCode, airlineName, origin, destination, date,
			core.NormalizedPrice{
				Amount:    day.Price.Amount,
				Currency:  day.Price.CurrencyCode,
				Source:    core.SourceDirectCrawl,
				CrawledAt: now,
			},
			cabin, core.SourceDirectCrawl,
		))
	}
	return flights
}

// Official API responses arrive without a documented schema, so the
// parsers below accept several envelope spellings.

func officialList(data map[string]any, keys ...string) []any {
	for _, key := range keys {
		switch candidate := data[key].(type) {
		case []any:
			return candidate
		case map[string]any:
			if inner := officialList(candidate, keys...); inner != nil {
				return inner
			}
		}
	}
	return nil
}

func entryString(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := entry[key].(type) {
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

func entryInt(entry map[string]any, keys ...string) int {
	for _, key := range keys {
		if v, ok := entry[key].(float64); ok {
			return int(v)
		}
	}
	return 0
}

func officialFlight(entry map[string]any, origin, destination string, cabin core.CabinClass, prices []core.NormalizedPrice, now time.Time) (core.NormalizedFlight, bool) {
	carrier := entryString(entry, "airlineCode", "marketingAirlineCode")
	if carrier == "" {
		carrier = airlineCode
	}
	number := entryString(entry, "flightNumber", "flightNo")

	flightNumber := carrier + number
	if number == "" {
		if origin == "" || destination == "" {
			return core.NormalizedFlight{}, false
		}
		flightNumber = core.SyntheticFlightNumber(airlineCode, origin, destination)
	}

	dep, ok := parseTime(entryString(entry, "departureDateTime", "departureTime"))
	if !ok {
		return core.NormalizedFlight{}, false
	}
	arr, ok := parseTime(entryString(entry, "arrivalDateTime", "arrivalTime"))
	if !ok {
		arr = dep
	}

	minutes := 0
	if raw := entryString(entry, "duration", "totalDuration"); raw != "" {
		minutes, _ = normalize.ParseISODuration(raw)
	}
	if minutes == 0 && arr.After(dep) {
		minutes = int(arr.Sub(dep).Minutes())
	}

	depPort := entryString(entry, "departureAirportCode", "originAirportCode")
	if depPort == "" {
		depPort = origin
	}
	arrPort := entryString(entry, "arrivalAirportCode", "destinationAirportCode")
	if arrPort == "" {
		arrPort = destination
	}

	operator := entryString(entry, "operatingAirlineCode")
	if operator == "" {
		operator = carrier
	}

	return core.NormalizedFlight{
		FlightNumber:    flightNumber,
		AirlineCode:     carrier,
		AirlineName:     airlineName,
		Operator:        operator,
		Origin:          depPort,
		Destination:     arrPort,
		DepartureTime:   dep,
		ArrivalTime:     arr,
		DurationMinutes: minutes,
		CabinClass:      cabin,
		AircraftType:    entryString(entry, "aircraftType", "equipmentCode"),
		Stops:           entryInt(entry, "stopCount", "stops"),
		Prices:          prices,
		Source:          core.SourceOfficialAPI,
		CrawledAt:       now,
	}, true
}

// parseOfficialTimetable yields priceless schedule rows.
func parseOfficialTimetable(data map[string]any, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, raw := range officialList(data, "data", "timetableList", "flights", "scheduleList") {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if flight, ok := officialFlight(entry, origin, destination, cabin, nil, now); ok {
			flights = append(flights, flight)
		}
	}
	return flights
}

func parseOfficialAvailability(data map[string]any, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, raw := range officialList(data, "data", "availabilityList", "flights", "flightList") {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		var prices []core.NormalizedPrice
		if families, ok := entry["fareFamilyList"].([]any); ok {
			for _, rawFamily := range families {
				family, ok := rawFamily.(map[string]any)
				if !ok {
					continue
				}
				amount, err := strconv.ParseFloat(entryString(family, "price", "amount"), 64)
				if err != nil || amount <= 0 {
					continue
				}
				fareClass := entryString(family, "fareClass", "fareFamilyCode")
				currency := entryString(family, "currency", "currencyCode")
				if currency == "" {
					currency = "USD"
				}
				prices = append(prices, core.NormalizedPrice{
					Amount:    amount,
					Currency:  currency,
					Source:    core.SourceOfficialAPI,
					FareClass: fareClass,
					CrawledAt: now,
				})
			}
		}
		if len(prices) == 0 {
			if amount, currency, ok := entryPrice(entry); ok {
				prices = append(prices, core.NormalizedPrice{
					Amount:    amount,
					Currency:  currency,
					Source:    core.SourceOfficialAPI,
					CrawledAt: now,
				})
			}
		}

		if flight, ok := officialFlight(entry, "", "", cabin, prices, now); ok {
			flights = append(flights, flight)
		}
	}
	return flights
}

// entryPrice handles both {"price": 123.4} and
// {"totalPrice": {"amount": 123.4, "currencyCode": "USD"}}.
func entryPrice(entry map[string]any) (float64, string, bool) {
	currency := entryString(entry, "currency", "currencyCode")
	for _, key := range []string{"price", "totalPrice"} {
		switch v := entry[key].(type) {
		case float64:
			if v > 0 {
				if currency == "" {
					currency = "USD"
				}
				return v, currency, true
			}
		case map[string]any:
			if amount, ok := v["amount"].(float64); ok && amount > 0 {
				if c := entryString(v, "currencyCode"); c != "" {
					currency = c
				}
				if currency == "" {
					currency = "USD"
				}
				return amount, currency, true
			}
		}
	}
	return 0, "", false
}
