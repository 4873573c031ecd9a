package airpremia

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleLowFares = `{
	"results": [
		{
			"origin": "ICN",
			"destination": "HNL",
			"dailyLowFareAvailabilities": [
				{
					"date": "2026-05-10",
					"lowFares": [
						{"productClassType": "EY", "productClass": "Saver", "baseFareAndTax": 489000},
						{"productClassType": "PF", "productClass": "First Flex", "baseFareAndTax": 1890000}
					]
				},
				{"date": "2026-05-11", "soldOut": true,
				 "lowFares": [{"productClassType": "EY", "baseFareAndTax": 512000}]},
				{"date": "2026-05-12", "noFlights": true},
				{"date": "2026-05-13",
				 "lowFares": [{"productClassType": "EY", "productClass": "Saver", "baseFareAndTax": 0}]},
				{"date": "2026-07-01",
				 "lowFares": [{"productClassType": "EY", "productClass": "Saver", "baseFareAndTax": 430000}]}
			]
		}
	]
}`

func collectDays(t *testing.T, raw string) []dailyAvailability {
	t.Helper()
	var envelope lowFaresResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &envelope))
	var days []dailyAvailability
	for _, result := range envelope.Results {
		days = append(days, result.DailyLowFareAvailabilities...)
	}
	return days
}

func TestParseLowFares(t *testing.T) {
	begin := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	end := begin.AddDate(0, 0, 30)

	flights := parseLowFares(collectDays(t, sampleLowFares), "ICN", "HNL", begin, end, core.Economy)
	require.Len(t, flights, 1, "sold-out, flightless, zero-fare and out-of-window days drop")

	f := flights[0]
	assert.Equal(t, "YP-ICNHNL", f.FlightNumber)
	assert.True(t, f.Synthetic)
	assert.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), f.DepartureTime)
	assert.Equal(t, core.Economy, f.CabinClass)
	require.Len(t, f.Prices, 1)
	assert.InEpsilon(t, 489000.0, f.Prices[0].Amount, 1e-9)
	assert.Equal(t, "KRW", f.Prices[0].Currency)
	assert.Equal(t, "Saver", f.Prices[0].FareClass)
}

func TestParseLowFaresCabinFilter(t *testing.T) {
	begin := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	end := begin.AddDate(0, 0, 30)

	flights := parseLowFares(collectDays(t, sampleLowFares), "ICN", "HNL", begin, end, core.Business)
	require.Len(t, flights, 1, "Premia First sells as business")
	assert.Equal(t, "First Flex", flights[0].Prices[0].FareClass)
	assert.InEpsilon(t, 1890000.0, flights[0].Prices[0].Amount, 1e-9)
}

func TestMonthAlignedChunks(t *testing.T) {
	begin := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)

	chunks := monthAlignedChunks(begin, end)
	require.Len(t, chunks, 2)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), chunks[0].begin)
	assert.Equal(t, time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), chunks[0].end,
		"chunks span at most two months and end on a month boundary")
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), chunks[1].begin)
	assert.Equal(t, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), chunks[1].end)
}

func TestMonthAlignedChunksSingleMonth(t *testing.T) {
	begin := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	chunks := monthAlignedChunks(begin, time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC))
	require.Len(t, chunks, 1)
	assert.Equal(t, time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC), chunks[0].end)
}

func TestMonthAlignedChunksYearBoundary(t *testing.T) {
	begin := time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC)
	chunks := monthAlignedChunks(begin, time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC))
	require.Len(t, chunks, 1)
	assert.Equal(t, time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC), chunks[0].end)
}

func TestChunkQuery(t *testing.T) {
	q := chunkQuery(core.SearchRequest{
		Origin:      "ICN",
		Destination: "HNL",
		TripType:    core.OneWay,
		Passengers:  core.PassengerMix{Adults: 2},
	}, dateChunk{
		begin: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		end:   time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, "OW", q.Get("tripType"))
	assert.Equal(t, "2026-05-10", q.Get("beginDate"))
	assert.Equal(t, "2026-05-31", q.Get("endDate"))
	assert.Equal(t, "2", q.Get("adtCount"))
}
