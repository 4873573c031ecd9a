package sputnik

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleFares = `[
	{
		"airline": {"iataCode": "JL"},
		"departureDate": "2026-09-15",
		"flightType": "INTERNATIONAL",
		"journeyType": "ONE_WAY",
		"outboundFlight": {
			"departureAirportIataCode": "NRT",
			"arrivalAirportIataCode": "ICN",
			"fareClass": "ECONOMY",
			"fareClassInput": "seat"
		},
		"priceSpecification": {"totalPrice": 154300, "currencyCode": "KRW", "soldOut": false}
	},
	{
		"departureDate": "2026-09-20",
		"outboundFlight": {
			"departureAirportIataCode": "NRT",
			"arrivalAirportIataCode": "ICN",
			"fareClass": "BUSINESS"
		},
		"priceSpecification": {"totalPrice": 712000, "currencyCode": "KRW", "soldOut": true}
	},
	{
		"departureDate": "2026-09-21",
		"outboundFlight": {
			"departureAirportIataCode": "HND",
			"arrivalAirportIataCode": "GMP"
		},
		"priceSpecification": {"totalPrice": 201000, "currencyCode": "KRW"}
	},
	{
		"departureDate": "bad-date",
		"outboundFlight": {
			"departureAirportIataCode": "NRT",
			"arrivalAirportIataCode": "ICN"
		},
		"priceSpecification": {"totalPrice": 99000, "currencyCode": "KRW"}
	}
]`

func TestParseFares(t *testing.T) {
	var entries []fareEntry
	require.NoError(t, json.Unmarshal([]byte(sampleFares), &entries))

	flights := ParseFares(entries, JapanAirlines, "NRT", "ICN", core.Economy)
	require.Len(t, flights, 1, "sold-out, off-route, and bad-date entries are dropped")

	f := flights[0]
	assert.Equal(t, "JL-NRTICN", f.FlightNumber)
	assert.Equal(t, "JL", f.AirlineCode)
	assert.Equal(t, "Japan Airlines", f.AirlineName)
	assert.True(t, f.Synthetic)
	assert.Equal(t, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), f.DepartureTime)
	require.Len(t, f.Prices, 1)
	assert.InEpsilon(t, 154300.0, f.Prices[0].Amount, 1e-9)
	assert.Equal(t, "economy-seat", f.Prices[0].FareClass)
}

func TestParseFaresUnfiltered(t *testing.T) {
	var entries []fareEntry
	require.NoError(t, json.Unmarshal([]byte(sampleFares), &entries))

	flights := ParseFares(entries, JapanAirlines, "", "", core.Economy)
	require.Len(t, flights, 2, "empty filters keep every route")
	assert.Equal(t, "JL-HNDGMP", flights[1].FlightNumber)
	assert.Equal(t, "lowest", flights[1].Prices[0].FareClass, "no fare class falls back to lowest")
}

func TestTenantTable(t *testing.T) {
	for _, tenant := range []Tenant{ThaiAirways, JapanAirlines, AirNewZealand, EthiopianAirlines} {
		assert.NotEmpty(t, tenant.Name)
		assert.NotEmpty(t, tenant.Path)
		assert.Len(t, tenant.AirlineCode, 2)
		assert.NotEmpty(t, tenant.HealthOrigin)
	}
}
