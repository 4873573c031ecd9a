package lotpolish

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const samplePriceBoxes = `{
	"priceBoxes": [
		{
			"originAirportIATA": "WAW",
			"destinationAirportIATA": "ICN",
			"cabinClassCode": "E",
			"cabinClassLabel": "Economy",
			"priceValue": "2,485",
			"priceCurrency": "PLN",
			"tripTypeCode": "R",
			"bookerDepartureTime": "15-03-2026",
			"bookerReturnTime": "25-03-2026",
			"baggageLabel": "HandLuggage"
		},
		{
			"originAirportIATA": "WAW",
			"destinationAirportIATA": "ICN",
			"cabinClassCode": "B",
			"cabinClassLabel": "Business",
			"priceValue": "9120",
			"priceCurrency": "PLN",
			"tripTypeCode": "R",
			"bookerDepartureTime": "18-03-2026"
		},
		{"priceValue": "", "cabinClassCode": "E"},
		{"priceValue": "call", "cabinClassCode": "E"}
	]
}`

func TestParsePriceBoxes(t *testing.T) {
	var envelope priceBoxesResponse
	require.NoError(t, json.Unmarshal([]byte(samplePriceBoxes), &envelope))

	flights := parsePriceBoxes(&envelope, "WAW", "ICN")
	require.Len(t, flights, 2, "priceless and malformed boxes are dropped")

	economy := flights[0]
	assert.Equal(t, "LO-WAWICN", economy.FlightNumber)
	assert.True(t, economy.Synthetic)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), economy.DepartureTime, "dates are day-month-year")
	assert.InEpsilon(t, 2485.0, economy.Prices[0].Amount, 1e-9, "thousands separator stripped")
	assert.Equal(t, "PLN", economy.Prices[0].Currency)
	assert.Equal(t, "RT-Economy / HandLuggage", economy.Prices[0].FareClass)
	assert.Equal(t, core.Economy, economy.CabinClass)

	business := flights[1]
	assert.Equal(t, core.Business, business.CabinClass)
	assert.Equal(t, "RT-Business", business.Prices[0].FareClass)
}
