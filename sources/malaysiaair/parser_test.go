package malaysiaair

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleOneway = `[
	{"refNo": "1", "dateOfDeparture": "150226", "totalFareAmount": "249.00", "totalTaxAmount": "112.00", "currency": "MYR", "isLowFare": false},
	{"refNo": "2", "dateOfDeparture": "160226", "totalFareAmount": "199.00", "totalTaxAmount": "112.00", "currency": "MYR", "isLowFare": true},
	{"refNo": "3", "dateOfDeparture": "170226", "totalFareAmount": "0.00", "totalTaxAmount": "0.00", "currency": "MYR"},
	{"refNo": "4", "dateOfDeparture": "2026-02-18", "totalFareAmount": "300.00", "totalTaxAmount": "0.00", "currency": "MYR"}
]`

const sampleReturn = `[
	{
		"dateOfDeparture": "150326",
		"totalFareAmount": "3390.00",
		"totalTaxAmount": "387.00",
		"currency": "MYR",
		"returnDetail": [
			{"dateOfDeparture": "150326", "totalFareAmount": "2325.00", "totalTaxAmount": "369.00", "currency": "MYR"},
			{"dateOfDeparture": "160326", "totalFareAmount": "0.00", "totalTaxAmount": "0.00"}
		]
	}
]`

func TestParseOnewayFares(t *testing.T) {
	var entries []fareEntry
	require.NoError(t, json.Unmarshal([]byte(sampleOneway), &entries))

	flights := parseOnewayFares(entries, "KUL", "SIN", core.Economy)
	require.Len(t, flights, 2, "zero fares and malformed dates are dropped")

	first := flights[0]
	assert.Equal(t, "MH-KULSIN", first.FlightNumber)
	assert.True(t, first.Synthetic)
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), first.DepartureTime, "DDMMYY is day first")
	assert.InEpsilon(t, 361.0, first.Prices[0].Amount, 1e-9, "fare plus tax")
	assert.Equal(t, "MYR", first.Prices[0].Currency)
	assert.Equal(t, "economy-lowest", first.Prices[0].FareClass)

	assert.Equal(t, "economy-promo", flights[1].Prices[0].FareClass)
}

func TestParseReturnFares(t *testing.T) {
	var entries []fareEntry
	require.NoError(t, json.Unmarshal([]byte(sampleReturn), &entries))

	flights := parseReturnFares(entries, "KUL", "ICN", core.Economy)
	require.Len(t, flights, 2, "outbound plus one priced return leg")

	outbound := flights[0]
	assert.Equal(t, "MH-KULICN", outbound.FlightNumber)
	assert.InEpsilon(t, 3777.0, outbound.Prices[0].Amount, 1e-9)
	assert.Equal(t, "economy-lowest-outbound", outbound.Prices[0].FareClass)

	inbound := flights[1]
	assert.Equal(t, "MH-ICNKUL", inbound.FlightNumber, "return legs reverse the route")
	assert.Equal(t, "ICN", inbound.Origin)
	assert.InEpsilon(t, 2694.0, inbound.Prices[0].Amount, 1e-9)
	assert.Equal(t, "economy-lowest-return", inbound.Prices[0].FareClass)
}

func TestParseDDMMYY(t *testing.T) {
	date, ok := parseDDMMYY("150326")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), date)

	_, ok = parseDDMMYY("15032026")
	assert.False(t, ok)
}
