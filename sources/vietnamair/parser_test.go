package vietnamair

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleSchedule = `{
	"success": true,
	"data": {
		"departureFlight": {
			"dictionaries": {
				"aircraft": {"359": "Airbus A350-900"},
				"airline": {"VN": "Vietnam Airlines"}
			},
			"scheduleItems": [
				{
					"connectedFlights": [
						{
							"flightInfo": {
								"marketingAirlineCode": "VN",
								"marketingFlightNumber": "417",
								"operatingAirlineCode": "VN",
								"operatingAirlineName": "Vietnam Airlines",
								"airEquipmentCode": "359",
								"departureLocation": {
									"locationCode": "ICN",
									"dateTime": "2026-03-01T10:05:00",
									"dateTimeZoneGmtOffset": 9.0
								},
								"arrivalLocation": {
									"locationCode": "HAN",
									"dateTime": "2026-03-01T13:05:00",
									"dateTimeZoneGmtOffset": 7.0
								},
								"duration": 18000
							},
							"numberOfStops": 0,
							"operatingDays": ["sunday", "wednesday"],
							"validityPeriod": {"start": "2026-01-01", "end": "2026-10-24"}
						}
					]
				},
				{
					"connectedFlights": [
						{
							"flightInfo": {
								"marketingAirlineCode": "VN",
								"marketingFlightNumber": 409,
								"departureLocation": {
									"locationCode": "ICN",
									"dateTime": "2026-03-01T18:30:00",
									"dateTimeZoneGmtOffset": 9.0
								},
								"arrivalLocation": {
									"locationCode": "SGN",
									"dateTime": "2026-03-01T22:00:00",
									"dateTimeZoneGmtOffset": 7.0
								},
								"duration": 19800
							}
						},
						{
							"flightInfo": {
								"marketingAirlineCode": "VN",
								"marketingFlightNumber": "1150",
								"departureLocation": {
									"locationCode": "SGN",
									"dateTime": "2026-03-02T06:00:00",
									"dateTimeZoneGmtOffset": 7.0
								},
								"arrivalLocation": {
									"locationCode": "HAN",
									"dateTime": "2026-03-02T08:10:00",
									"dateTimeZoneGmtOffset": 7.0
								},
								"duration": 7800
							}
						}
					]
				},
				{
					"connectedFlights": [
						{
							"flightInfo": {
								"marketingAirlineCode": "VN",
								"marketingFlightNumber": "417",
								"departureLocation": {
									"locationCode": "ICN",
									"dateTime": "2026-03-08T10:05:00",
									"dateTimeZoneGmtOffset": 9.0
								},
								"arrivalLocation": {
									"locationCode": "HAN",
									"dateTime": "2026-03-08T13:05:00",
									"dateTimeZoneGmtOffset": 7.0
								},
								"duration": 18000
							}
						}
					]
				}
			]
		}
	}
}`

const sampleBestPrices = `{
	"success": true,
	"data": {
		"prices": [
			{
				"departureDate": "2026-03-01",
				"price": [
					{"base": "214000", "total": "285400", "totalTaxes": "71400", "currencyCode": "KRW"}
				]
			},
			{
				"departureDate": "2026-03-02",
				"price": [
					{"base": "19900", "total": "26350", "totalTaxes": "6450", "currencyCode": "USD"}
				]
			},
			{"departureDate": "2026-03-03", "price": []}
		],
		"dictionaries": {
			"currency": {
				"KRW": {"decimalPlaces": 0, "name": "Korean Won"},
				"USD": {"decimalPlaces": 2, "name": "US Dollar"}
			}
		}
	}
}`

func TestParseSchedule(t *testing.T) {
	var envelope scheduleResponse
	require.NoError(t, json.Unmarshal([]byte(sampleSchedule), &envelope))

	flights := parseSchedule(&envelope, "2026-03-01", core.Economy)
	require.Len(t, flights, 2, "off-date itineraries are dropped")

	direct := flights[0]
	assert.Equal(t, "VN417", direct.FlightNumber)
	assert.Equal(t, "VN", direct.AirlineCode)
	assert.Equal(t, "Vietnam Airlines", direct.AirlineName)
	assert.Equal(t, "ICN", direct.Origin)
	assert.Equal(t, "HAN", direct.Destination)
	assert.Equal(t, 0, direct.Stops)
	assert.Equal(t, "Airbus A350-900", direct.AircraftType)
	assert.Equal(t, 300, direct.DurationMinutes)
	assert.Equal(t, time.Date(2026, 3, 1, 1, 5, 0, 0, time.UTC), direct.DepartureTime,
		"local 10:05 KST converts to UTC")
	assert.Equal(t, time.Date(2026, 3, 1, 6, 5, 0, 0, time.UTC), direct.ArrivalTime,
		"local 13:05 ICT converts to UTC")

	connection := flights[1]
	assert.Equal(t, "VN409/VN1150", connection.FlightNumber, "numeric flight numbers tolerated")
	assert.Equal(t, "ICN", connection.Origin)
	assert.Equal(t, 1, connection.Stops)
	assert.Equal(t, "HAN", connection.Destination)
	// Endpoint delta, so the overnight layover counts.
	assert.Equal(t, 940, connection.DurationMinutes)
}

func TestParseScheduleOperatingDays(t *testing.T) {
	var envelope scheduleResponse
	require.NoError(t, json.Unmarshal([]byte(sampleSchedule), &envelope))

	// 2026-03-04 is a Wednesday inside VN417's validity window; the
	// itinerary matches through operatingDays even though its sample
	// departure datetime is another date.
	flights := parseSchedule(&envelope, "2026-03-04", core.Economy)
	require.Len(t, flights, 1)
	assert.Equal(t, "VN417", flights[0].FlightNumber)
}

func TestParseBestPrices(t *testing.T) {
	var envelope bestPriceResponse
	require.NoError(t, json.Unmarshal([]byte(sampleBestPrices), &envelope))

	priceMap := parseBestPrices(&envelope)
	require.Len(t, priceMap, 2, "priceless dates are dropped")

	krw := priceMap["2026-03-01"]
	assert.InEpsilon(t, 285400.0, krw.Amount, 1e-9)
	assert.Equal(t, "KRW", krw.Currency)

	usd := priceMap["2026-03-02"]
	assert.InEpsilon(t, 263.50, usd.Amount, 1e-9, "two decimal places descaled")
	assert.Equal(t, "USD", usd.Currency)
}

func TestAttachPrices(t *testing.T) {
	flights := []core.NormalizedFlight{
		{FlightNumber: "VN417", DepartureTime: time.Date(2026, 3, 1, 1, 5, 0, 0, time.UTC)},
		{FlightNumber: "VN403", DepartureTime: time.Date(2026, 2, 28, 23, 50, 0, 0, time.UTC)},
	}
	priceMap := map[string]core.NormalizedPrice{
		"2026-03-01": {Amount: 285400, Currency: "KRW"},
	}

	attachPrices(flights, priceMap, "2026-03-01")
	require.Len(t, flights[0].Prices, 1)
	require.Len(t, flights[1].Prices, 1, "searched date matches even when UTC date differs")

	// Without a target date the UTC-day-after fallback still finds the
	// local-date fare.
	flights[1].Prices = nil
	attachPrices(flights[1:], priceMap, "")
	require.Len(t, flights[1].Prices, 1)
}

func TestLocationForAirport(t *testing.T) {
	assert.Equal(t, "KR", locationForAirport("icn"))
	assert.Equal(t, "VN", locationForAirport("XYZ"), "unknown airports default to VN")
}
