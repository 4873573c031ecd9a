package airbusan

import (
	"bytes"
	"strconv"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
)

const (
	airlineCode = "BX"
	airlineName = "Air Busan"
)

// looseNumber tolerates numeric fields the API serializes as strings.
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

type fareClass struct {
	Cls      string      `json:"cls"`
	SubCls   string      `json:"subCls"`
	PriceAd  looseNumber `json:"priceAd"`
	Avail    looseNumber `json:"avail"`
	Currency string      `json:"currency"`
}

type availFlight struct {
	FlightNo string `json:"flightNo"`
	// Dates are YYYYMMDD, times HHMM, both KST.
	DepDate      string      `json:"depDate"`
	ArrDate      string      `json:"arrDate"`
	DepTime      string      `json:"depTime"`
	ArrTime      string      `json:"arrTime"`
	DepCity      string      `json:"depCity"`
	ArrCity      string      `json:"arrCity"`
	FlyingMinute looseNumber `json:"flyingMinute"`
	ListCls      []fareClass `json:"listCls"`
}

type itineraryFare struct {
	DepDate    string        `json:"depDate"`
	ListFlight []availFlight `json:"listFlight"`
}

type availResponse struct {
	ErrorCode         string          `json:"errorCode"`
	ErrorDesc         string          `json:"errorDesc"`
	ListItineraryFare []itineraryFare `json:"listItineraryFare"`
	PubTaxFuel        struct {
		TaxAd  looseNumber `json:"taxAd"`
		FuelAd looseNumber `json:"fuelAd"`
	} `json:"pubTaxFuel"`
}

// parseKSTTime converts YYYYMMDD + HHMM local Korean time to UTC.
func parseKSTTime(date, clock string) (time.Time, error) {
	local, err := time.Parse("200601021504", date+clock)
	if err != nil {
		return time.Time{}, err
	}
	return local.Add(-9 * time.Hour), nil
}

// parseFlightsAvail emits one flight per schedule row with a price per
// bookable fare class. Totals fold in the response-wide per-adult tax
// and fuel surcharge.
func parseFlightsAvail(raw *availResponse, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	surcharge := float64(raw.PubTaxFuel.TaxAd) + float64(raw.PubTaxFuel.FuelAd)

	var flights []core.NormalizedFlight
	for _, itin := range raw.ListItineraryFare {
		for _, flt := range itin.ListFlight {
			depDate := flt.DepDate
			if depDate == "" {
				depDate = itin.DepDate
			}
			if flt.FlightNo == "" || depDate == "" {
				continue
			}
			arrDate := flt.ArrDate
			if arrDate == "" {
				arrDate = depDate
			}
			depTime := flt.DepTime
			if depTime == "" {
				depTime = "0000"
			}
			arrTime := flt.ArrTime
			if arrTime == "" {
				arrTime = "0000"
			}

			departure, err := parseKSTTime(depDate, depTime)
			if err != nil {
				logger.Warn("invalid departure time, skipping", "source", Name, "flight", flt.FlightNo)
				continue
			}
			arrival, err := parseKSTTime(arrDate, arrTime)
			if err != nil {
				logger.Warn("invalid arrival time, skipping", "source", Name, "flight", flt.FlightNo)
				continue
			}

			var prices []core.NormalizedPrice
			for _, cls := range flt.ListCls {
				if cls.PriceAd <= 0 || cls.Avail <= 0 {
					continue
				}
				currency := cls.Currency
				if currency == "" {
					currency = "KRW"
				}
				label := cls.Cls
				if cls.SubCls != "" {
					label = cls.Cls + "/" + cls.SubCls
				}
				prices = append(prices, core.NormalizedPrice{
					Amount:    float64(cls.PriceAd) + surcharge,
					Currency:  currency,
					Source:    core.SourceDirectCrawl,
					FareClass: label,
					CrawledAt: now,
				})
			}
			if len(prices) == 0 {
				continue
			}

			depCity := flt.DepCity
			if depCity == "" {
				depCity = origin
			}
			arrCity := flt.ArrCity
			if arrCity == "" {
				arrCity = destination
			}

			flights = append(flights, core.NormalizedFlight{
				FlightNumber:    flt.FlightNo,
				AirlineCode:     airlineCode,
				AirlineName:     airlineName,
				Operator:        airlineCode,
				Origin:          depCity,
				Destination:     arrCity,
				DepartureTime:   departure,
				ArrivalTime:     arrival,
				DurationMinutes: int(flt.FlyingMinute),
				CabinClass:      cabin,
				Prices:          prices,
				Source:          core.SourceDirectCrawl,
				CrawledAt:       now,
			})
		}
	}
	return flights
}
