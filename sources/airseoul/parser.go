package airseoul

import (
	"bytes"
	"strconv"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
)

const (
	airlineCode = "RS"
	airlineName = "Air Seoul"
)

// aircraftTypes maps the flightType code to an aircraft name.
var aircraftTypes = map[string]string{
	"321": "A321",
	"32Q": "A321neo",
	"320": "A320",
	"738": "B737-800",
	"739": "B737-900",
}

// looseNumber tolerates numeric fields serialized as strings.
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	parsed, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = looseNumber(parsed)
	return nil
}

type segmentInfo struct {
	FlightNO             string `json:"flightNO"`
	MarketingAirlineCode string `json:"marketingAirlineCode"`
	OperationAirlineCode string `json:"operationAirlineCode"`
	DepartureAirportCode string `json:"departureAirportCode"`
	ArrivalAirportCode   string `json:"arrivalAirportCode"`
	// Dates are YYYYMMDD, times HHMMSS, both KST.
	DepartureDate string `json:"departureDate"`
	DepartureTime string `json:"departureTime"`
	ArrivalDate   string `json:"arrivalDate"`
	ArrivalTime   string `json:"arrivalTime"`
	// FlyingTime is HHMM.
	FlyingTime string `json:"flyingTime"`
	FlightType string `json:"flightType"`
}

type flightShop struct {
	AvailFlight     bool          `json:"availFlight"`
	FlightInfoDatas []segmentInfo `json:"flightInfoDatas"`

	PromotionalTotalFare      looseNumber `json:"promotionalTotalFare"`
	PromotionalEquivFareBasis string      `json:"promotionalEquivFareBasis"`
	PromotionalSeatCount      looseNumber `json:"promotionalSeatCount"`
	DiscountTotalFare         looseNumber `json:"discountTotalFare"`
	DiscountEquivFareBasis    string      `json:"discountEquivFareBasis"`
	DiscountSeatCount         looseNumber `json:"discountSeatCount"`
	NormalTotalFare           looseNumber `json:"normalTotalFare"`
	NormalEquivFareBasis      string      `json:"normalEquivFareBasis"`
	NormalSeatCount           looseNumber `json:"normalSeatCount"`
}

type flightInfoResponse struct {
	Code         string `json:"code"`
	FareShopData struct {
		Currency        string       `json:"USE_CURRENCY"`
		FlightShopDatas []flightShop `json:"flightShopDatas"`
	} `json:"fareShopData"`
}

func parseKSTTime(date, clock string) (time.Time, error) {
	if len(clock) > 4 {
		clock = clock[:4]
	}
	local, err := time.Parse("200601021504", date+clock)
	if err != nil {
		return time.Time{}, err
	}
	return local.Add(-9 * time.Hour), nil
}

func parseFlyingTime(value string) int {
	if len(value) < 4 {
		return 0
	}
	hours, err := strconv.Atoi(value[:2])
	if err != nil {
		return 0
	}
	minutes, err := strconv.Atoi(value[2:4])
	if err != nil {
		return 0
	}
	return hours*60 + minutes
}

// parseFlightInfo emits one flight per shop row with a price per fare
// tier. Unlike the calendar-only LCC endpoints this one carries real
// flight identity, so rows are never synthetic.
func parseFlightInfo(raw *flightInfoResponse, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	currency := raw.FareShopData.Currency
	if currency == "" {
		currency = "KRW"
	}

	var flights []core.NormalizedFlight
	for _, fs := range raw.FareShopData.FlightShopDatas {
		if !fs.AvailFlight || len(fs.FlightInfoDatas) == 0 {
			continue
		}
		seg := fs.FlightInfoDatas[0]
		if seg.FlightNO == "" || seg.DepartureDate == "" {
			continue
		}

		depTime := seg.DepartureTime
		if depTime == "" {
			depTime = "000000"
		}
		arrDate := seg.ArrivalDate
		if arrDate == "" {
			arrDate = seg.DepartureDate
		}
		arrTime := seg.ArrivalTime
		if arrTime == "" {
			arrTime = "000000"
		}

		departure, err := parseKSTTime(seg.DepartureDate, depTime)
		if err != nil {
			logger.Warn("invalid departure time, skipping", "source", Name, "flight", seg.FlightNO)
			continue
		}
		arrival, err := parseKSTTime(arrDate, arrTime)
		if err != nil {
			logger.Warn("invalid arrival time, skipping", "source", Name, "flight", seg.FlightNO)
			continue
		}

		var prices []core.NormalizedPrice
		addTier := func(total looseNumber, basis, fallback string) {
			if total <= 0 {
				return
			}
			if basis == "" {
				basis = fallback
			}
			prices = append(prices, core.NormalizedPrice{
				Amount:    float64(total),
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				FareClass: basis,
				CrawledAt: now,
			})
		}
		// Promotional tiers disappear when sold out; the other tiers
		// stay quoted regardless of seat counts.
		if fs.PromotionalSeatCount > 0 {
			addTier(fs.PromotionalTotalFare, fs.PromotionalEquivFareBasis, "promotional")
		}
		addTier(fs.DiscountTotalFare, fs.DiscountEquivFareBasis, "discount")
		addTier(fs.NormalTotalFare, fs.NormalEquivFareBasis, "normal")
		if len(prices) == 0 {
			continue
		}

		marketing := seg.MarketingAirlineCode
		if marketing == "" {
			marketing = airlineCode
		}
		operator := seg.OperationAirlineCode
		if operator == "" {
			operator = airlineCode
		}
		depAirport := seg.DepartureAirportCode
		if depAirport == "" {
			depAirport = origin
		}
		arrAirport := seg.ArrivalAirportCode
		if arrAirport == "" {
			arrAirport = destination
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:    airlineCode + seg.FlightNO,
			AirlineCode:     marketing,
			AirlineName:     airlineName,
			Operator:        operator,
			Origin:          depAirport,
			Destination:     arrAirport,
			DepartureTime:   departure,
			ArrivalTime:     arrival,
			DurationMinutes: parseFlyingTime(seg.FlyingTime),
			CabinClass:      cabin,
			AircraftType:    aircraftTypes[seg.FlightType],
			Prices:          prices,
			Source:          core.SourceDirectCrawl,
			CrawledAt:       now,
		})
	}
	return flights
}
