package lotpolish

import (
	"strconv"
	"strings"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	airlineCode = "LO"
	airlineName = "LOT Polish Airlines"
)

var cabinMap = map[string]core.CabinClass{
	"E": core.Economy,
	"P": core.PremiumEconomy,
	"B": core.Business,
}

type priceBox struct {
	OriginAirportIATA      string `json:"originAirportIATA"`
	DestinationAirportIATA string `json:"destinationAirportIATA"`
	CabinClassCode         string `json:"cabinClassCode"`
	CabinClassLabel        string `json:"cabinClassLabel"`
	PriceValue             string `json:"priceValue"`
	PriceCurrency          string `json:"priceCurrency"`
	TripTypeCode           string `json:"tripTypeCode"`
	// BookerDepartureTime is DD-MM-YYYY.
	BookerDepartureTime string `json:"bookerDepartureTime"`
	BookerReturnTime    string `json:"bookerReturnTime"`
	BaggageLabel        string `json:"baggageLabel"`
}

type priceBoxesResponse struct {
	PriceBoxes []priceBox `json:"priceBoxes"`
}

// parsePriceBoxes emits one synthetic row per curated price box. The
// boxes are round-trip teaser fares, so the fare class records the
// trip type alongside cabin and baggage labels.
func parsePriceBoxes(raw *priceBoxesResponse, origin, destination string) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, box := range raw.PriceBoxes {
		if box.PriceValue == "" {
			continue
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(box.PriceValue, ",", ""), 64)
		if err != nil || amount <= 0 {
			logger.Warn("invalid price box value, skipping", "source", Name, "price", box.PriceValue)
			continue
		}

		date, err := time.Parse("02-01-2006", box.BookerDepartureTime)
		if err != nil {
			date = time.Now().UTC().Truncate(24 * time.Hour)
		}

		dep := box.OriginAirportIATA
		if dep == "" {
			dep = origin
		}
		arr := box.DestinationAirportIATA
		if arr == "" {
			arr = destination
		}
		cabin, ok := cabinMap[box.CabinClassCode]
		if !ok {
			cabin = core.Economy
		}

		var labels []string
		if box.CabinClassLabel != "" {
			labels = append(labels, box.CabinClassLabel)
		}
		if box.BaggageLabel != "" {
			labels = append(labels, box.BaggageLabel)
		}
		fareClass := strings.Join(labels, " / ")
		if fareClass == "" {
			fareClass = "standard"
		}
		if box.TripTypeCode == "R" {
			fareClass = "RT-" + fareClass
		}

		currency := box.PriceCurrency
		if currency == "" {
			currency = "PLN"
		}

		flights = append(flights, normalize.SyntheticCalendarFlight(
			airlineCode, airlineName, dep, arr, date,
			core.NormalizedPrice{
				Amount:    amount,
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				FareClass: fareClass,
				CrawledAt: now,
			},
			cabin, core.SourceDirectCrawl,
		))
	}
	return flights
}
