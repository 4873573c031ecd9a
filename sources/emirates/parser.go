package emirates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/skyfare/skyfare/core"
)

const (
	airlineCode = "EK"
	airlineName = "Emirates"
)

var cabinMap = map[string]core.CabinClass{
	"Y": core.Economy,
	"W": core.PremiumEconomy,
	"J": core.Business,
	"F": core.First,
}

type featuredFaresResponse struct {
	Results struct {
		Data struct {
			Fares []originGroup `json:"fares"`
		} `json:"data"`
	} `json:"results"`
}

type originGroup struct {
	Code         string     `json:"code"`
	Destinations []fareCard `json:"destinations"`
}

type fareCard struct {
	Code            string `json:"code"`
	CityTitle       string `json:"cityTitle"`
	CallOutPrice    string `json:"callOutPrice"`
	FarePrice       string `json:"farePrice"`
	CurrencyCode    string `json:"currencycode"`
	TravelClassCode string `json:"travelClassCode"`
	TravelFrom      string `json:"travelFrom"`
	TicketType      string `json:"ticketType"`
}

var priceDigits = regexp.MustCompile(`[\d.]+`)

// parseFarePrice extracts the amount from formatted strings like
// "KRW 881,700*".
func parseFarePrice(s string) float64 {
	match := priceDigits.FindString(strings.ReplaceAll(s, ",", ""))
	if match == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return amount
}

// parseTravelDate handles both "09 Feb 26" and ISO dates. Unparseable
// values fall back to now so the row still sorts near the present.
func parseTravelDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", "02 Jan 06", "02 Jan 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// parseFeaturedFares filters fare cards to the requested route and
// emits one synthetic row per card. Featured fares carry no schedule,
// so departure equals the travel-period start and duration is zero.
func parseFeaturedFares(envelope *featuredFaresResponse, origin, destination string, fallback core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, group := range envelope.Results.Data.Fares {
		if group.Code == "" || !strings.EqualFold(group.Code, origin) {
			continue
		}
		for _, card := range group.Destinations {
			if card.Code == "" || !strings.EqualFold(card.Code, destination) {
				continue
			}

			priceStr := card.FarePrice
			if priceStr == "" {
				priceStr = card.CallOutPrice
			}
			amount := parseFarePrice(priceStr)
			if amount <= 0 {
				continue
			}
			currency := card.CurrencyCode
			if currency == "" {
				currency = "KRW"
			}

			cabin := fallback
			if mapped, ok := cabinMap[card.TravelClassCode]; ok {
				cabin = mapped
			}

			fareClass := "featured"
			if card.TicketType != "" {
				fareClass = "featured-" + strings.ToLower(card.TicketType)
			}

			travelFrom := parseTravelDate(card.TravelFrom)
			flights = append(flights, core.NormalizedFlight{
				FlightNumber:    core.SyntheticFlightNumber(airlineCode, group.Code, card.Code),
				AirlineCode:     airlineCode,
				AirlineName:     airlineName,
				Operator:        airlineCode,
				Origin:          group.Code,
				Destination:     card.Code,
				DepartureTime:   travelFrom,
				ArrivalTime:     travelFrom,
				DurationMinutes: 0,
				CabinClass:      cabin,
				Stops:           0,
				Synthetic:       true,
				Prices: []core.NormalizedPrice{{
					Amount:    amount,
					Currency:  currency,
					Source:    core.SourceDirectCrawl,
					FareClass: fareClass,
					CrawledAt: now,
				}},
				Source:    core.SourceDirectCrawl,
				CrawledAt: now,
			})
		}
	}
	return flights
}
