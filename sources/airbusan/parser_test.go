package airbusan

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleAvail = `{
	"listItineraryFare": [
		{
			"depDate": "20260401",
			"listFlight": [
				{
					"flightNo": "BX164",
					"depDate": "20260401",
					"arrDate": "20260401",
					"depTime": "0855",
					"arrTime": "1040",
					"depCity": "PUS",
					"arrCity": "NRT",
					"flyingMinute": "105",
					"listCls": [
						{"cls": "S", "subCls": "SME", "priceAd": "185000", "avail": "9", "currency": "KRW"},
						{"cls": "L", "priceAd": 142000, "avail": 4, "currency": "KRW"},
						{"cls": "E", "priceAd": "98000", "avail": "0", "currency": "KRW"},
						{"cls": "A", "priceAd": "0", "avail": "5", "currency": "KRW"}
					]
				},
				{
					"flightNo": "BX168",
					"depDate": "20260401",
					"depTime": "1830",
					"arrTime": "2015",
					"listCls": [
						{"cls": "E", "priceAd": "0", "avail": "0"}
					]
				}
			]
		}
	],
	"pubTaxFuel": {"taxAd": "28000", "fuelAd": "14400"}
}`

func TestParseFlightsAvail(t *testing.T) {
	var envelope availResponse
	require.NoError(t, json.Unmarshal([]byte(sampleAvail), &envelope))

	flights := parseFlightsAvail(&envelope, "PUS", "NRT", core.Economy)
	require.Len(t, flights, 1, "flights without bookable fares are dropped")

	f := flights[0]
	assert.Equal(t, "BX164", f.FlightNumber)
	assert.Equal(t, "BX", f.AirlineCode)
	assert.Equal(t, "PUS", f.Origin)
	assert.Equal(t, "NRT", f.Destination)
	assert.Equal(t, 105, f.DurationMinutes)
	assert.Equal(t, time.Date(2026, 3, 31, 23, 55, 0, 0, time.UTC), f.DepartureTime, "KST 08:55 converts to UTC")

	require.Len(t, f.Prices, 2, "sold-out and zero-priced classes are dropped")
	assert.Equal(t, "S/SME", f.Prices[0].FareClass)
	assert.InEpsilon(t, 227400.0, f.Prices[0].Amount, 1e-9, "base plus tax plus fuel")
	assert.Equal(t, "L", f.Prices[1].FareClass)
	assert.InEpsilon(t, 184400.0, f.Prices[1].Amount, 1e-9)
}

func TestLooseNumber(t *testing.T) {
	var v struct {
		A looseNumber `json:"a"`
		B looseNumber `json:"b"`
		C looseNumber `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "12.5", "b": 7, "c": ""}`), &v))
	assert.InEpsilon(t, 12.5, float64(v.A), 1e-9)
	assert.InEpsilon(t, 7.0, float64(v.B), 1e-9)
	assert.Zero(t, float64(v.C))
}
