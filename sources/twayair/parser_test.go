package twayair

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleLowestFares = `{
	"OW": {
		"20260301": "20260301|ICN|NRT|N|N|Y|N|100000.0|138700.0|SmartFare",
		"20260302": "20260302|ICN|NRT|Y|N|Y|N|95000.0|133700.0|SmartFare",
		"20260303": "20260303|ICN|NRT|N|N|N|N|90000.0|128700.0|SmartFare",
		"20260304": "20260304|ICN|NRT|N|N|Y|N|0|0|",
		"20260305": "20260305|ICN|NRT|N|N|Y|N|110000.0|148700.0"
	}
}`

func TestParseLowestFares(t *testing.T) {
	var envelope lowestFareResponse
	require.NoError(t, json.Unmarshal([]byte(sampleLowestFares), &envelope))

	flights := parseLowestFares(&envelope, "ICN", "NRT", core.Economy, "KRW")
	require.Len(t, flights, 2, "sold-out, non-operating, and free days are dropped")

	f := flights[0]
	assert.Equal(t, "TW-ICNNRT", f.FlightNumber)
	assert.True(t, f.Synthetic)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), f.DepartureTime)
	assert.InEpsilon(t, 138700.0, f.Prices[0].Amount, 1e-9, "total fare, not base")
	assert.Equal(t, "SmartFare", f.Prices[0].FareClass)

	assert.Equal(t, "lowest", flights[1].Prices[0].FareClass, "missing fare class falls back")
}

func TestCsrfPattern(t *testing.T) {
	html := `<head><meta name="_csrf" content="a1b2c3d4-e5f6"/></head>`
	m := csrfPattern.FindStringSubmatch(html)
	require.NotNil(t, m)
	assert.Equal(t, "a1b2c3d4-e5f6", m[1])
}
