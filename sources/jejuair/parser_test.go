package jejuair

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleCalendar = `{
	"code": "0000",
	"data": {
		"lowfares": {
			"currencyCode": "KRW",
			"lowFareDateMarkets": [
				{
					"departureDate": "2026-03-01T00:00:00",
					"origin": "ICN",
					"destination": "NRT",
					"noFlights": false,
					"lowestFareAmount": {"fareAmount": 91000, "taxesAndFeesAmount": 42400}
				},
				{
					"departureDate": "2026-03-02T00:00:00",
					"noFlights": true,
					"lowestFareAmount": {"fareAmount": 88000, "taxesAndFeesAmount": 42400}
				},
				{
					"departureDate": "2026-03-03T00:00:00",
					"lowestFareAmount": {"fareAmount": 0, "taxesAndFeesAmount": 0}
				}
			]
		}
	}
}`

func TestParseLowestFares(t *testing.T) {
	var envelope calendarResponse
	require.NoError(t, json.Unmarshal([]byte(sampleCalendar), &envelope))

	flights := parseLowestFares(&envelope, "ICN", "NRT", core.Economy)
	require.Len(t, flights, 1, "no-flight and unpriced days are dropped")

	f := flights[0]
	assert.Equal(t, "7C-ICNNRT", f.FlightNumber)
	assert.True(t, f.Synthetic)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), f.DepartureTime)
	assert.InEpsilon(t, 133400.0, f.Prices[0].Amount, 1e-9, "fare plus taxes")
	assert.Equal(t, "KRW", f.Prices[0].Currency)
	assert.Equal(t, "lowest", f.Prices[0].FareClass)
}
