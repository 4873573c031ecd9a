package hainan

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

const sampleFareTrends = `{
	"success": true,
	"data": {
		"orgCode": "PEK",
		"dstCode": "HAK",
		"priceCalandar": [
			{"day": "20260401", "price": "890"},
			{"day": "20260402", "price": "0"},
			{"day": "20260403", "price": "1260.5"},
			{"day": "2026-04-04", "price": "700"},
			{"day": "20260405", "price": "n/a"}
		]
	}
}`

func TestParseFareTrends(t *testing.T) {
	var envelope fareTrendsResponse
	require.NoError(t, json.Unmarshal([]byte(sampleFareTrends), &envelope))

	flights := parseFareTrends(&envelope, "BJS", "HAK", core.Economy)
	require.Len(t, flights, 2, "zero, malformed, and unparsable fares are dropped")

	f := flights[0]
	assert.Equal(t, "HU-PEKHAK", f.FlightNumber, "response station codes win over request codes")
	assert.Equal(t, "PEK", f.Origin)
	assert.True(t, f.Synthetic)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), f.DepartureTime)
	assert.InEpsilon(t, 890.0, f.Prices[0].Amount, 1e-9)
	assert.Equal(t, "CNY", f.Prices[0].Currency)

	assert.InEpsilon(t, 1260.5, flights[1].Prices[0].Amount, 1e-9)
}

func TestSignDeterministic(t *testing.T) {
	params := map[string]any{
		"b":     "two",
		"a":     "one",
		"stime": int64(1700000000000),
		"szone": -480,
		"empty": "",
	}
	first := sign(params)
	second := sign(params)

	assert.Equal(t, first, second, "signature depends only on sorted values")
	assert.Len(t, first, 40, "HMAC-SHA1 hex digest")
	assert.Equal(t, first, strings.ToUpper(first))
}
