package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

func names(flights []core.NormalizedFlight) []string {
	out := make([]string, len(flights))
	for i, f := range flights {
		out[i] = f.FlightNumber
	}
	return out
}

func TestFilterMaxPrice(t *testing.T) {
	limit := 200.0
	f := NewFilter(Preferences{MaxPrice: &limit}, nil)

	cheap := economy("LJ201", "LJ", 9, 150)
	pricey := economy("KE123", "KE", 9, 250)
	priceless := economy("OZ102", "OZ", 9, 100)
	priceless.Prices = nil

	got := f.Apply([]core.NormalizedFlight{cheap, pricey, priceless})
	assert.Equal(t, []string{"LJ201"}, names(got))
}

func TestFilterPricelessPassesWithoutPriceConstraint(t *testing.T) {
	priceless := economy("OZ102", "OZ", 9, 100)
	priceless.Prices = nil

	got := NewFilter(Preferences{}, nil).Apply([]core.NormalizedFlight{priceless})
	assert.Len(t, got, 1)
}

func TestFilterAirlineLists(t *testing.T) {
	ke := economy("KE123", "KE", 9, 100)
	lj := economy("LJ201", "LJ", 9, 100)
	tw := economy("TW301", "TW", 9, 100)

	t.Run("whitelist", func(t *testing.T) {
		f := NewFilter(Preferences{PreferredAirlines: []string{"KE", "TW"}}, nil)
		got := f.Apply([]core.NormalizedFlight{ke, lj, tw})
		assert.Equal(t, []string{"KE123", "TW301"}, names(got))
	})

	t.Run("blacklist", func(t *testing.T) {
		f := NewFilter(Preferences{ExcludedAirlines: []string{"LJ"}}, nil)
		got := f.Apply([]core.NormalizedFlight{ke, lj, tw})
		assert.Equal(t, []string{"KE123", "TW301"}, names(got))
	})
}

func TestFilterMaxStops(t *testing.T) {
	direct := economy("KE123", "KE", 9, 100)
	oneStop := economy("OZ102", "OZ", 9, 90)
	oneStop.Stops = 1

	zero := 0
	got := NewFilter(Preferences{MaxStops: &zero}, nil).Apply(
		[]core.NormalizedFlight{direct, oneStop})
	assert.Equal(t, []string{"KE123"}, names(got))
}

func TestFilterHardDepartureWindow(t *testing.T) {
	morning := economy("KE123", "KE", 9, 100)
	night := economy("LJ201", "LJ", 22, 100)

	prefs := Preferences{
		HardWindow:     true,
		DepartureStart: At(8, 0),
		DepartureEnd:   At(12, 0),
	}
	got := NewFilter(prefs, nil).Apply([]core.NormalizedFlight{morning, night})
	assert.Equal(t, []string{"KE123"}, names(got))

	t.Run("soft window keeps both", func(t *testing.T) {
		prefs.HardWindow = false
		got := NewFilter(prefs, nil).Apply([]core.NormalizedFlight{morning, night})
		assert.Len(t, got, 2)
	})
}

func TestFilterRequiredServices(t *testing.T) {
	bundled := economy("KE123", "KE", 9, 100)
	bundled.Prices[0].IncludesBaggage = true
	bundled.Prices[0].IncludesMeal = true

	bare := economy("LJ201", "LJ", 9, 80)

	got := NewFilter(Preferences{BaggageRequired: true, MealRequired: true}, nil).Apply(
		[]core.NormalizedFlight{bundled, bare})
	assert.Equal(t, []string{"KE123"}, names(got))
}

func TestFilterSeatSpecConstraints(t *testing.T) {
	pitch := 31.0
	specs := map[string]SeatSpec{
		"KE_ECONOMY": {PitchInches: 33, WidthInches: 17.2},
		"LJ_ECONOMY": {PitchInches: 29, WidthInches: 17.0},
	}
	f := NewFilter(Preferences{MinSeatPitch: &pitch}, specs)

	ke := economy("KE123", "KE", 9, 100)
	lj := economy("LJ201", "LJ", 9, 80)
	unknown := economy("ZZ999", "ZZ", 9, 70)

	got := f.Apply([]core.NormalizedFlight{ke, lj, unknown})
	// LJ fails the pitch minimum; ZZ has no spec entry so a configured
	// seat constraint excludes it.
	require.Equal(t, []string{"KE123"}, names(got))
}

func TestFilterNoConstraintsPassesEverything(t *testing.T) {
	flights := []core.NormalizedFlight{
		economy("KE123", "KE", 9, 100),
		economy("LJ201", "LJ", 22, 80),
	}
	got := NewFilter(Preferences{}, nil).Apply(flights)
	assert.Len(t, got, 2)
}
