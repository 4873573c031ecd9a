package afklm

import (
	"time"

	"github.com/skyfare/skyfare/core"
)

var airlineNames = map[string]string{
	"AF": "Air France",
	"KL": "KLM Royal Dutch Airlines",
}

var cabinMap = map[string]core.CabinClass{
	"ECONOMY":         core.Economy,
	"PREMIUM":         core.PremiumEconomy,
	"PREMIUM_ECONOMY": core.PremiumEconomy,
	"BUSINESS":        core.Business,
	"FIRST":           core.First,
}

type gqlError struct {
	Message string `json:"message"`
}

type carrierRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type operatingFlight struct {
	Carrier carrierRef `json:"carrier"`
}

type marketingFlight struct {
	Carrier         carrierRef      `json:"carrier"`
	Number          string          `json:"number"`
	OperatingFlight operatingFlight `json:"operatingFlight"`
}

type stationRef struct {
	Code string `json:"code"`
}

type offerSegment struct {
	MarketingFlight   marketingFlight `json:"marketingFlight"`
	Origin            stationRef      `json:"origin"`
	Destination       stationRef      `json:"destination"`
	DepartureDateTime string          `json:"departureDateTime"`
	ArrivalDateTime   string          `json:"arrivalDateTime"`
	Duration          int             `json:"duration"`
	EquipmentName     string          `json:"equipmentName"`
}

type activeConnection struct {
	Duration int            `json:"duration"`
	IsDirect bool           `json:"isDirect"`
	Segments []offerSegment `json:"segments"`
}

type productPrice struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currencyCode"`
}

type fareFamily struct {
	Code string `json:"code"`
}

type productConnection struct {
	CabinClass             string       `json:"cabinClass"`
	FareFamily             fareFamily   `json:"fareFamily"`
	Price                  productPrice `json:"price"`
	NumberOfSeatsAvailable int          `json:"numberOfSeatsAvailable"`
}

type cabinProduct struct {
	Connections []productConnection `json:"connections"`
}

type offerItinerary struct {
	ActiveConnection    activeConnection `json:"activeConnection"`
	UpsellCabinProducts []cabinProduct   `json:"upsellCabinProducts"`
	FlightProducts      []cabinProduct   `json:"flightProducts"`
}

type availableOffers struct {
	OfferItineraries []offerItinerary `json:"offerItineraries"`
}

type offersEnvelope struct {
	Errors []gqlError `json:"errors"`
	Data   struct {
		AvailableOffers availableOffers `json:"availableOffers"`
	} `json:"data"`
}

// The Aviato API reports local times without offsets; they are carried
// as UTC the way every other source here does.
func parseOfferTime(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseAvailableOffers emits one flight per itinerary with the upsell
// cabin ladder as its price list.
func parseAvailableOffers(envelope *offersEnvelope, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, itin := range envelope.Data.AvailableOffers.OfferItineraries {
		segments := itin.ActiveConnection.Segments
		if len(segments) == 0 {
			continue
		}
		first := segments[0]
		last := segments[len(segments)-1]

		dep, ok := parseOfferTime(first.DepartureDateTime)
		if !ok {
			continue
		}
		arr, ok := parseOfferTime(last.ArrivalDateTime)
		if !ok {
			arr = dep
		}

		minutes := itin.ActiveConnection.Duration
		if minutes == 0 && arr.After(dep) {
			minutes = int(arr.Sub(dep).Minutes())
		}

		carrier := first.MarketingFlight.Carrier.Code
		operator := first.MarketingFlight.OperatingFlight.Carrier.Code
		if operator == "" {
			operator = carrier
		}
		name := first.MarketingFlight.OperatingFlight.Carrier.Name
		if name == "" {
			name = airlineNames[carrier]
		}

		products := itin.UpsellCabinProducts
		if len(products) == 0 {
			products = itin.FlightProducts
		}

		var prices []core.NormalizedPrice
		primaryCabin := cabin
		for _, product := range products {
			if len(product.Connections) == 0 {
				continue
			}
			conn := product.Connections[0]
			if conn.Price.Amount <= 0 {
				continue
			}
			prices = append(prices, core.NormalizedPrice{
				Amount:    conn.Price.Amount,
				Currency:  conn.Price.CurrencyCode,
				Source:    core.SourceDirectCrawl,
				FareClass: conn.FareFamily.Code,
				CrawledAt: now,
			})
			if mapped, ok := cabinMap[conn.CabinClass]; ok && mapped == cabin {
				primaryCabin = mapped
			}
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:    carrier + first.MarketingFlight.Number,
			AirlineCode:     carrier,
			AirlineName:     name,
			Operator:        operator,
			Origin:          first.Origin.Code,
			Destination:     last.Destination.Code,
			DepartureTime:   dep,
			ArrivalTime:     arr,
			DurationMinutes: minutes,
			CabinClass:      primaryCabin,
			AircraftType:    first.EquipmentName,
			Stops:           len(segments) - 1,
			Prices:          prices,
			Source:          core.SourceDirectCrawl,
			CrawledAt:       now,
		})
	}
	return flights
}
