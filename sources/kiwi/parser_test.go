package kiwi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleSearch = `{
	"data": [
		{
			"price": 185.5,
			"deep_link": "https://www.kiwi.com/deep?flight=1",
			"bags_price": {"1": 0},
			"countryTo": {"cur": "JPY"},
			"flyFrom": "ICN",
			"flyTo": "NRT",
			"airlines": ["KE"],
			"route": [
				{
					"flyFrom": "ICN",
					"flyTo": "NRT",
					"dTime": 1789459800,
					"aTime": 1789467900,
					"airline": "KE",
					"flight_no": 123,
					"operating_carrier": "KE"
				}
			]
		},
		{
			"price": 240,
			"deep_link": "https://www.kiwi.com/deep?flight=2",
			"bags_price": {"1": 35.0},
			"countryTo": {"cur": "JPY"},
			"flyFrom": "ICN",
			"flyTo": "NRT",
			"airlines": ["OZ"],
			"route": [
				{
					"flyFrom": "ICN",
					"flyTo": "KIX",
					"dTime": 1789459800,
					"aTime": 1789466100,
					"airline": "OZ",
					"flight_no": 112,
					"operating_carrier": ""
				},
				{
					"flyFrom": "KIX",
					"flyTo": "NRT",
					"dTime": 1789470000,
					"aTime": 1789474500,
					"airline": "OZ",
					"flight_no": 988,
					"operating_carrier": "NH"
				}
			]
		}
	]
}`

func TestParseSearchSegments(t *testing.T) {
	var raw searchResponse
	require.NoError(t, json.Unmarshal([]byte(sampleSearch), &raw))

	flights := parseSearch(&raw, core.Economy)
	require.Len(t, flights, 3)

	direct := flights[0]
	assert.Equal(t, "KE123", direct.FlightNumber)
	assert.Equal(t, "KE", direct.AirlineCode)
	assert.Equal(t, "KE", direct.Operator)
	assert.Equal(t, "ICN", direct.Origin)
	assert.Equal(t, "NRT", direct.Destination)
	assert.Equal(t, time.Unix(1789459800, 0).UTC(), direct.DepartureTime)
	assert.Equal(t, 135, direct.DurationMinutes)
	assert.Equal(t, core.Economy, direct.CabinClass)
	assert.Equal(t, core.SourceKiwiAPI, direct.Source)

	require.Len(t, direct.Prices, 1)
	assert.Equal(t, 185.5, direct.Prices[0].Amount)
	assert.Equal(t, "JPY", direct.Prices[0].Currency)
	assert.True(t, direct.Prices[0].IncludesBaggage, "free first bag means baggage included")
	assert.Equal(t, "https://www.kiwi.com/deep?flight=1", direct.Prices[0].BookingURL)

	// The two-segment itinerary produces one flight per leg with the
	// itinerary price attached to both.
	leg1, leg2 := flights[1], flights[2]
	assert.Equal(t, "OZ112", leg1.FlightNumber)
	assert.Equal(t, "OZ", leg1.Operator, "empty operating carrier falls back to marketing carrier")
	assert.Equal(t, "OZ988", leg2.FlightNumber)
	assert.Equal(t, "NH", leg2.Operator)
	assert.Equal(t, leg1.Prices[0].Amount, leg2.Prices[0].Amount)
	assert.False(t, leg1.Prices[0].IncludesBaggage, "paid first bag is not included baggage")
}

func TestParseSearchNoRouteFallsBackToItinerary(t *testing.T) {
	raw := searchResponse{Data: []itinerary{{
		Price:    99,
		FlyFrom:  "ICN",
		FlyTo:    "NRT",
		DTime:    1789459800,
		ATime:    1789467900,
		Airlines: []string{"7C"},
	}}}

	flights := parseSearch(&raw, core.Business)
	require.Len(t, flights, 1)
	assert.Equal(t, "7C0", flights[0].FlightNumber)
	assert.Equal(t, "7C", flights[0].AirlineCode)
	assert.Equal(t, core.Business, flights[0].CabinClass)
	assert.Equal(t, "KRW", flights[0].Prices[0].Currency)
}

func TestParseSearchEmpty(t *testing.T) {
	flights := parseSearch(&searchResponse{}, core.Economy)
	assert.Empty(t, flights)
}
