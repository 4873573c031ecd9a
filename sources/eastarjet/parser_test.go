package eastarjet

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleDailyLowFares = `{
	"data": {
		"currencyCode": "KRW",
		"origin": "ICN",
		"destination": "NRT",
		"lowFareAmounts": [
			{"deptDate": "2026-09-15", "totalPrice": 89000},
			{"deptDate": "2026-09-16", "totalPrice": 0},
			{"deptDate": "2026-09-17", "totalPrice": 112000},
			{"deptDate": "not-a-date", "totalPrice": 99000}
		]
	}
}`

func TestParseDailyLowFares(t *testing.T) {
	var envelope dailyLowFareResponse
	require.NoError(t, json.Unmarshal([]byte(sampleDailyLowFares), &envelope))

	flights := parseDailyLowFares(&envelope, "SEL", "NRT", core.Economy)
	require.Len(t, flights, 2, "zero fares and bad dates are dropped")

	first := flights[0]
	assert.Equal(t, "ZE-ICNNRT", first.FlightNumber)
	assert.Equal(t, "ZE", first.AirlineCode)
	assert.Equal(t, "Eastar Jet", first.AirlineName)
	assert.Equal(t, "ICN", first.Origin, "station codes from the response win over the request")
	assert.Equal(t, "NRT", first.Destination)
	assert.True(t, first.Synthetic)
	assert.Equal(t, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), first.DepartureTime)
	assert.Equal(t, first.DepartureTime, first.ArrivalTime)
	require.Len(t, first.Prices, 1)
	assert.InEpsilon(t, 89000.0, first.Prices[0].Amount, 1e-9)
	assert.Equal(t, "lowest", first.Prices[0].FareClass)

	assert.InEpsilon(t, 112000.0, flights[1].Prices[0].Amount, 1e-9)
}

func TestErrorText(t *testing.T) {
	var envelope dailyLowFareResponse
	require.NoError(t, json.Unmarshal([]byte(`{"errors":[{"code":"SESSION_INVALID"}]}`), &envelope))
	assert.Contains(t, envelope.errorText(), "SESSION_INVALID")

	var clean dailyLowFareResponse
	require.NoError(t, json.Unmarshal([]byte(`{"errors":[],"data":{}}`), &clean))
	assert.Empty(t, clean.errorText())
}
