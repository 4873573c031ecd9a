package cathay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleHistogram = `[
	{
		"date_departure": "20260217",
		"date_return": "20260303",
		"base_fare": 1790.00,
		"total_fare": 2834.00,
		"currency": "HKD",
		"tax": 1044.00,
		"outbound_cabin": "Y",
		"inbound_cabin": "Y",
		"month": 2,
		"tax_inclusive": true
	},
	{
		"date_departure": "20260318",
		"total_fare": 0,
		"currency": "HKD",
		"outbound_cabin": "Y"
	},
	{
		"date_departure": "20260415",
		"total_fare": 9120.00,
		"currency": "HKD",
		"outbound_cabin": "J"
	},
	{
		"date_departure": "2026-05-01",
		"total_fare": 3000.00,
		"currency": "HKD"
	}
]`

func TestParseHistogram(t *testing.T) {
	var entries []histogramEntry
	require.NoError(t, json.Unmarshal([]byte(sampleHistogram), &entries))

	flights := parseHistogram(entries, "HKG", "ICN", core.Economy)
	require.Len(t, flights, 2, "zero fares and non-compact dates are dropped")

	economy := flights[0]
	assert.Equal(t, "CX-HKGICN", economy.FlightNumber)
	assert.Equal(t, "CX", economy.AirlineCode)
	assert.Equal(t, "Cathay Pacific", economy.AirlineName)
	assert.True(t, economy.Synthetic)
	assert.Equal(t, time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC), economy.DepartureTime)
	assert.InEpsilon(t, 2834.0, economy.Prices[0].Amount, 1e-9, "total fare includes tax")
	assert.Equal(t, "HKD", economy.Prices[0].Currency)
	assert.Equal(t, core.Economy, economy.CabinClass)

	business := flights[1]
	assert.Equal(t, core.Business, business.CabinClass)
	assert.Equal(t, "J", business.Prices[0].FareClass)
}

func TestParseHistogramEmpty(t *testing.T) {
	assert.Empty(t, parseHistogram(nil, "HKG", "ICN", core.Economy))
}
