package evaair

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleBestPrices = `{
	"Succ": true,
	"Code": "0000",
	"Data": {
		"currency": "TWD",
		"data": [
			{"date": "2026-02-15T00:00:00", "price": 16825, "highlight": false},
			{"date": "2026-02-16T00:00:00", "price": 0, "highlight": false},
			{"date": "2026-02-17T00:00:00", "price": 14210, "highlight": true},
			{"date": "17/02/2026", "price": 15000}
		]
	}
}`

func TestParseBestPrices(t *testing.T) {
	var envelope bestPricesResponse
	require.NoError(t, json.Unmarshal([]byte(sampleBestPrices), &envelope))

	flights := parseBestPrices(&envelope, "TPE", "ICN", core.Economy)
	require.Len(t, flights, 2, "unpriced and malformed days are dropped")

	f := flights[0]
	assert.Equal(t, "BR-TPEICN", f.FlightNumber)
	assert.True(t, f.Synthetic)
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), f.DepartureTime)
	assert.InEpsilon(t, 16825.0, f.Prices[0].Amount, 1e-9)
	assert.Equal(t, "TWD", f.Prices[0].Currency)
	assert.Equal(t, "lowest", f.Prices[0].FareClass)

	assert.Equal(t, "lowest-highlight", flights[1].Prices[0].FareClass, "cheapest day is highlighted")
}

func TestParseBestPricesEmptyData(t *testing.T) {
	raw := &bestPricesResponse{Succ: true}
	assert.Empty(t, parseBestPrices(raw, "TPE", "ICN", core.Economy))
}
