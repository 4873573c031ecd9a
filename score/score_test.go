package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

func economy(num, airline string, depHour int, amount float64) core.NormalizedFlight {
	dep := time.Date(2026, 3, 15, depHour, 0, 0, 0, time.UTC)
	return core.NormalizedFlight{
		FlightNumber:    num,
		AirlineCode:     airline,
		Origin:          "ICN",
		Destination:     "NRT",
		DepartureTime:   dep,
		ArrivalTime:     dep.Add(2 * time.Hour),
		DurationMinutes: 120,
		CabinClass:      core.Economy,
		Source:          core.SourceDirectCrawl,
		Prices:          []core.NormalizedPrice{{Amount: amount, Currency: "KRW", Source: core.SourceDirectCrawl}},
	}
}

var koreanCarriers = map[string]AirlineType{
	"KE": FullService,
	"OZ": FullService,
	"LJ": LowCost,
	"TW": LowCost,
	"7C": LowCost,
}

func TestBalancedProfileScenario(t *testing.T) {
	// Two 09:00 departures, one LCC at 100 and one FSC at 150, no
	// window, no seat constraints.
	f1 := economy("LJ201", "LJ", 9, 100)
	f2 := economy("KE123", "KE", 9, 150)

	s := NewScorer(Preferences{Priority: PriorityBalanced}, koreanCarriers, nil)
	got := s.Score([]core.NormalizedFlight{f1, f2})
	require.Len(t, got, 2)

	assert.Equal(t, 1.0, got[0].PriceScore)
	assert.Equal(t, 0.0, got[1].PriceScore)
	assert.Equal(t, 0.5, got[0].ReliabilityScore)
	assert.Equal(t, 0.8, got[1].ReliabilityScore)
	assert.Equal(t, 0.5, got[0].TimeScore)
	assert.Equal(t, 0.5, got[0].ComfortScore)
	assert.Equal(t, 1.0, got[0].ServiceScore)

	assert.Equal(t, 0.7, got[0].TotalScore)
	assert.Equal(t, 0.445, got[1].TotalScore)

	ranked := Rank([]core.NormalizedFlight{f1, f2}, Preferences{Priority: PriorityBalanced}, koreanCarriers, nil)
	assert.Equal(t, "LJ201", ranked[0].Flight.FlightNumber)
}

func TestScoresStayInBounds(t *testing.T) {
	flights := []core.NormalizedFlight{
		economy("KE123", "KE", 6, 100),
		economy("LJ201", "LJ", 14, 500),
		economy("TW301", "TW", 23, 300),
	}
	prefs := Preferences{
		Priority:       PriorityTime,
		DepartureStart: At(8, 0),
		DepartureEnd:   At(12, 0),
		BaggageRequired: true,
	}
	for _, b := range NewScorer(prefs, koreanCarriers, nil).Score(flights) {
		for name, v := range map[string]float64{
			"price":       b.PriceScore,
			"time":        b.TimeScore,
			"comfort":     b.ComfortScore,
			"service":     b.ServiceScore,
			"reliability": b.ReliabilityScore,
			"total":       b.TotalScore,
		} {
			assert.GreaterOrEqual(t, v, 0.0, "%s for %s", name, b.Flight.FlightNumber)
			assert.LessOrEqual(t, v, 1.0, "%s for %s", name, b.Flight.FlightNumber)
		}
	}
}

func TestPriceScoreAllEqual(t *testing.T) {
	flights := []core.NormalizedFlight{
		economy("KE123", "KE", 9, 200),
		economy("OZ102", "OZ", 11, 200),
	}
	got := NewScorer(Preferences{Priority: PriorityPrice}, koreanCarriers, nil).Score(flights)
	assert.Equal(t, 1.0, got[0].PriceScore)
	assert.Equal(t, 1.0, got[1].PriceScore)
}

func TestTimeScoreWindowAndDecay(t *testing.T) {
	prefs := Preferences{
		Priority:       PriorityTime,
		DepartureStart: At(9, 0),
		DepartureEnd:   At(12, 0),
	}
	s := NewScorer(prefs, nil, nil)

	tests := []struct {
		hour int
		want float64
	}{
		{10, 1.0}, // inside window
		{9, 1.0},  // on the edge
		{12, 1.0},
		{13, 1 - 1.0/6}, // one hour past the end
		{15, 0.5},       // three hours past
		{18, 0.0},       // six hours past, fully decayed
		{21, 0.0},       // beyond decay horizon clamps at zero
	}
	for _, tt := range tests {
		got := s.Score([]core.NormalizedFlight{economy("KE1", "KE", tt.hour, 100)})
		assert.InDelta(t, tt.want, got[0].TimeScore, 0.0001, "hour %d", tt.hour)
	}
}

func TestTimeScoreOvernightWindow(t *testing.T) {
	prefs := Preferences{
		Priority:       PriorityTime,
		DepartureStart: At(22, 0),
		DepartureEnd:   At(6, 0),
	}
	s := NewScorer(prefs, nil, nil)

	late := s.Score([]core.NormalizedFlight{economy("KE1", "KE", 23, 100)})
	assert.Equal(t, 1.0, late[0].TimeScore)

	early := s.Score([]core.NormalizedFlight{economy("KE1", "KE", 5, 100)})
	assert.Equal(t, 1.0, early[0].TimeScore)

	midday := s.Score([]core.NormalizedFlight{economy("KE1", "KE", 12, 100)})
	// 12:00 is 6h from either edge; decay bottoms out at 0.
	assert.Equal(t, 0.0, midday[0].TimeScore)
}

func TestComfortScoreSeatSpecs(t *testing.T) {
	pitch, width := 32.0, 18.0
	prefs := Preferences{Priority: PriorityComfort, MinSeatPitch: &pitch, MinSeatWidth: &width}
	specs := map[string]SeatSpec{
		"KE_ECONOMY": {PitchInches: 33, WidthInches: 17.2},
		"LJ_ECONOMY": {PitchInches: 29, WidthInches: 17.0},
	}
	s := NewScorer(prefs, koreanCarriers, specs)

	got := s.Score([]core.NormalizedFlight{
		economy("KE123", "KE", 9, 100),
		economy("LJ201", "LJ", 9, 100),
		economy("ZZ999", "ZZ", 9, 100),
	})

	// KE: pitch ratio capped at 1.0, width 17.2/18.
	assert.InDelta(t, (1.0+17.2/18.0)/2, got[0].ComfortScore, 0.0001)
	// LJ: 29/32 and 17/18.
	assert.InDelta(t, (29.0/32.0+17.0/18.0)/2, got[1].ComfortScore, 0.0001)
	// Unknown airline has no spec entry.
	assert.Equal(t, 0.5, got[2].ComfortScore)
}

func TestServiceScore(t *testing.T) {
	withBaggage := economy("KE123", "KE", 9, 100)
	withBaggage.Prices[0].IncludesBaggage = true

	bare := economy("LJ201", "LJ", 9, 100)

	prefs := Preferences{Priority: PriorityBalanced, BaggageRequired: true, MealRequired: true}
	got := NewScorer(prefs, koreanCarriers, nil).Score([]core.NormalizedFlight{withBaggage, bare})

	assert.Equal(t, 0.5, got[0].ServiceScore) // baggage yes, meal no
	assert.Equal(t, 0.0, got[1].ServiceScore) // both required, both absent
}

func TestReliabilityMultiSourceBonus(t *testing.T) {
	merged := economy("KE123", "KE", 9, 100)
	merged.MergedSources = []core.DataSource{core.SourceKiwiAPI, core.SourceGoogleProtobuf}

	single := economy("KE124", "KE", 10, 100)

	got := NewScorer(Preferences{Priority: PriorityBalanced}, koreanCarriers, nil).Score(
		[]core.NormalizedFlight{merged, single})
	assert.Equal(t, 1.0, got[0].ReliabilityScore) // 0.8 + 0.2 capped
	assert.Equal(t, 0.8, got[1].ReliabilityScore)
}

func TestWeightProfilesSumToOne(t *testing.T) {
	for _, p := range []Priority{PriorityPrice, PriorityTime, PriorityComfort, PriorityBalanced} {
		w := ProfileWeights(p)
		assert.InDelta(t, 1.0, w.Price+w.Time+w.Comfort+w.Service+w.Reliability, 1e-9, "profile %s", p)
	}
	assert.Equal(t, ProfileWeights(PriorityBalanced), ProfileWeights(Priority("NONSENSE")))
}

func TestPriceProfileFavorsCheapest(t *testing.T) {
	cheapLCC := economy("TW301", "TW", 3, 90)
	prettyFSC := economy("KE123", "KE", 10, 400)

	prefs := Preferences{Priority: PriorityPrice, DepartureStart: At(9, 0), DepartureEnd: At(12, 0)}
	ranked := Rank([]core.NormalizedFlight{prettyFSC, cheapLCC}, prefs, koreanCarriers, nil)
	assert.Equal(t, "TW301", ranked[0].Flight.FlightNumber)

	prefs.Priority = PriorityTime
	ranked = Rank([]core.NormalizedFlight{prettyFSC, cheapLCC}, prefs, koreanCarriers, nil)
	assert.Equal(t, "KE123", ranked[0].Flight.FlightNumber)
}

func TestSyntheticRowScoresAlone(t *testing.T) {
	dep := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	syn := core.NormalizedFlight{
		FlightNumber:  "TW-ICNNRT",
		AirlineCode:   "TW",
		Origin:        "ICN",
		Destination:   "NRT",
		DepartureTime: dep,
		ArrivalTime:   dep,
		Synthetic:     true,
		Source:        core.SourceDirectCrawl,
		Prices:        []core.NormalizedPrice{{Amount: 120000, Currency: "KRW", Source: core.SourceDirectCrawl}},
	}
	got := NewScorer(Preferences{Priority: PriorityBalanced}, koreanCarriers, nil).Score(
		[]core.NormalizedFlight{syn})
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].PriceScore)
	assert.Equal(t, 0.5, got[0].TimeScore)
	assert.Equal(t, 0.5, got[0].ComfortScore)
	assert.Equal(t, 1.0, got[0].ServiceScore)
}
