package singaporeair

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleAvailability = `{
	"status": "SUCCESS",
	"response": {
		"currency": {"code": "KRW"},
		"recommendations": [
			{
				"segmentBounds": [
					{
						"fareFamily": "ECOVALUE",
						"sellingClass": "V",
						"cabinClass": "Y",
						"fareSummary": {
							"fareTotal": {"totalAmount": 1250000},
							"fareDetailsPerAdult": {"totalAmount": 625000}
						},
						"segments": [
							{
								"departureDateTime": "2026-09-15 09:00:00",
								"arrivalDateTime": "2026-09-15 14:30:00",
								"tripDuration": 23400,
								"legs": [
									{
										"flightNumber": "SQ607",
										"originAirportCode": "ICN",
										"destinationAirportCode": "SIN",
										"flightDuration": 23400,
										"operatingAirline": {"code": "SQ", "name": "Singapore Airlines"},
										"marketingAirline": {"code": "SQ", "name": "Singapore Airlines"},
										"aircraft": {"code": "359"}
									}
								]
							}
						]
					},
					{
						"sellingClass": "J",
						"cabinClass": "J",
						"fareSummary": {
							"fareDetailsPerAdult": {"totalAmount": 2100000}
						},
						"segments": [
							{
								"legs": [
									{
										"flightNumber": "MI431",
										"originAirportCode": "ICN",
										"destinationAirportCode": "SIN",
										"departureDateTime": "2026-09-15 23:40:00",
										"arrivalDateTime": "2026-09-16 05:10:00",
										"operatingAirline": {"code": "MI", "name": "Scoot"},
										"marketingAirline": {"code": "SQ", "name": "Singapore Airlines"}
									},
									{
										"flightNumber": "SQ946",
										"destinationAirportCode": "DPS",
										"departureDateTime": "2026-09-16 07:00:00",
										"arrivalDateTime": "2026-09-16 09:30:00"
									}
								]
							}
						]
					}
				]
			}
		]
	}
}`

func TestParseAvailability(t *testing.T) {
	var envelope availabilityResponse
	require.NoError(t, json.Unmarshal([]byte(sampleAvailability), &envelope))

	flights := parseAvailability(&envelope, "ICN", "SIN", core.Economy)
	require.Len(t, flights, 2)

	direct := flights[0]
	assert.Equal(t, "SQ607", direct.FlightNumber)
	assert.Equal(t, "SQ", direct.AirlineCode)
	assert.Equal(t, "Singapore Airlines", direct.AirlineName)
	assert.Equal(t, "ICN", direct.Origin)
	assert.Equal(t, "SIN", direct.Destination)
	assert.Equal(t, time.Date(2026, 9, 15, 9, 0, 0, 0, time.UTC), direct.DepartureTime)
	assert.Equal(t, 390, direct.DurationMinutes, "tripDuration is seconds")
	assert.Equal(t, core.Economy, direct.CabinClass)
	assert.Equal(t, 0, direct.Stops)
	require.Len(t, direct.Prices, 1)
	assert.InEpsilon(t, 625000.0, direct.Prices[0].Amount, 1e-9, "per-adult fare wins over bound total")
	assert.Equal(t, "KRW", direct.Prices[0].Currency)
	assert.Equal(t, "V/ECOVALUE", direct.Prices[0].FareClass)

	connection := flights[1]
	assert.Equal(t, "MI431", connection.FlightNumber)
	assert.Equal(t, "MI", connection.Operator, "operating carrier preserved")
	assert.Equal(t, "SQ", connection.AirlineCode)
	assert.Equal(t, 1, connection.Stops)
	assert.Equal(t, "DPS", connection.Destination)
	assert.Equal(t, core.Business, connection.CabinClass)
	assert.Equal(t, "J", connection.Prices[0].FareClass, "no fare family keeps bare selling class")
	assert.Equal(t, time.Date(2026, 9, 15, 23, 40, 0, 0, time.UTC), connection.DepartureTime,
		"segment falls back to first-leg departure")
}

func TestParseAvailabilityEmpty(t *testing.T) {
	var envelope availabilityResponse
	assert.Empty(t, parseAvailability(&envelope, "ICN", "SIN", core.Economy))
}
