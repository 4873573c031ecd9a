package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

func TestSyntheticCalendarFlight(t *testing.T) {
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	price := core.NormalizedPrice{Amount: 89000, Currency: "KRW", Source: core.SourceDirectCrawl, CrawledAt: time.Now().UTC()}

	f := SyntheticCalendarFlight("LJ", "Jin Air", "ICN", "NRT", date, price, core.Economy, core.SourceDirectCrawl)

	assert.Equal(t, "LJ-ICNNRT", f.FlightNumber)
	assert.True(t, f.Synthetic)
	assert.Equal(t, 0, f.DurationMinutes)
	assert.Equal(t, f.DepartureTime, f.ArrivalTime)
	assert.Equal(t, date, f.DepartureTime)
	require.Len(t, f.Prices, 1)
	assert.Equal(t, 89000.0, f.Prices[0].Amount)
}

func TestDurationMinutes(t *testing.T) {
	dep := time.Date(2026, 9, 15, 8, 30, 0, 0, time.UTC)
	assert.Equal(t, 135, DurationMinutes(dep, dep.Add(135*time.Minute)))
	assert.Equal(t, 0, DurationMinutes(dep, dep))

	// Overnight arrival recorded without a date rolls forward.
	arr := time.Date(2026, 9, 15, 1, 10, 0, 0, time.UTC)
	dep = time.Date(2026, 9, 15, 23, 40, 0, 0, time.UTC)
	assert.Equal(t, 90, DurationMinutes(dep, arr))
}

func TestParseISODuration(t *testing.T) {
	cases := map[string]int{
		"PT2H15M": 135,
		"PT45M":   45,
		"PT11H":   660,
		"PT0H0M":  0,
	}
	for in, want := range cases {
		got, err := ParseISODuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "2h15m", "P1DT2H", "PTXM"} {
		_, err := ParseISODuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseCompactDate(t *testing.T) {
	d, err := ParseCompactDate("20260915")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseCompactDate("2026-09-15")
	assert.Error(t, err)
}
