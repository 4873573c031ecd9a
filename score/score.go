// Package score ranks merged flights with a weighted multi-factor
// evaluation and applies hard preference filters before scoring.
package score

import (
	"fmt"
	"math"
	"time"

	"github.com/skyfare/skyfare/core"
)

// Priority selects a weight profile.
type Priority string

const (
	PriorityPrice    Priority = "PRICE"
	PriorityTime     Priority = "TIME"
	PriorityComfort  Priority = "COMFORT"
	PriorityBalanced Priority = "BALANCED"
)

// Weights is one row of the profile table. Each row sums to 1.0.
type Weights struct {
	Price       float64
	Time        float64
	Comfort     float64
	Service     float64
	Reliability float64
}

var weightProfiles = map[Priority]Weights{
	PriorityPrice:    {Price: 0.50, Time: 0.20, Comfort: 0.10, Service: 0.10, Reliability: 0.10},
	PriorityTime:     {Price: 0.15, Time: 0.45, Comfort: 0.10, Service: 0.10, Reliability: 0.20},
	PriorityComfort:  {Price: 0.15, Time: 0.10, Comfort: 0.45, Service: 0.20, Reliability: 0.10},
	PriorityBalanced: {Price: 0.30, Time: 0.25, Comfort: 0.20, Service: 0.10, Reliability: 0.15},
}

// ProfileWeights returns the weight row for a priority, falling back to
// BALANCED for unknown values.
func ProfileWeights(p Priority) Weights {
	if w, ok := weightProfiles[p]; ok {
		return w
	}
	return weightProfiles[PriorityBalanced]
}

// AirlineType classifies carriers for the reliability subscore.
type AirlineType string

const (
	FullService AirlineType = "FSC"
	LowCost     AirlineType = "LCC"
	UltraLowCost AirlineType = "ULCC"
)

var reliabilityBase = map[AirlineType]float64{
	FullService:  0.8,
	LowCost:      0.5,
	UltraLowCost: 0.3,
}

// SeatSpec describes the seat product for one airline/cabin pair.
type SeatSpec struct {
	PitchInches float64 `json:"seat_pitch_inches"`
	WidthInches float64 `json:"seat_width_inches"`
}

// SeatSpecKey builds the lookup key for the seat-spec table.
func SeatSpecKey(airlineCode string, cabin core.CabinClass) string {
	return fmt.Sprintf("%s_%s", airlineCode, cabin)
}

// Preferences drives both the hard filter and the scorer.
type Preferences struct {
	Priority Priority

	// Preferred departure window. Both nil means unconfigured; the
	// window may wrap midnight (e.g. 22:00 to 06:00).
	DepartureStart *DayTime
	DepartureEnd   *DayTime

	MinSeatPitch *float64
	MinSeatWidth *float64

	BaggageRequired bool
	MealRequired    bool

	// Hard filter constraints.
	MaxPrice          *float64
	MaxStops          *int
	PreferredAirlines []string
	ExcludedAirlines  []string
	HardWindow        bool
}

// DayTime is a time of day independent of date.
type DayTime struct {
	Hour   int
	Minute int
}

// At returns a DayTime pointer, for literal preference construction.
func At(hour, minute int) *DayTime {
	return &DayTime{Hour: hour, Minute: minute}
}

func (d DayTime) minutes() int { return d.Hour*60 + d.Minute }

// ScoreBreakdown is the per-flight scoring result. All subscores lie in
// [0, 1] and round to four decimals.
type ScoreBreakdown struct {
	Flight core.NormalizedFlight `json:"flight"`

	PriceScore       float64  `json:"price_score"`
	TimeScore        float64  `json:"time_score"`
	ComfortScore     float64  `json:"comfort_score"`
	ServiceScore     float64  `json:"service_score"`
	ReliabilityScore float64  `json:"reliability_score"`
	TotalScore       float64  `json:"total_score"`
	Priority         Priority `json:"priority"`
}

// Scorer evaluates flights against a preference set. Airline types and
// seat specs come from reference data; both maps may be nil.
type Scorer struct {
	prefs        Preferences
	weights      Weights
	airlineTypes map[string]AirlineType
	seatSpecs    map[string]SeatSpec
}

// NewScorer builds a scorer. airlineTypes is keyed by IATA airline
// code; seatSpecs by SeatSpecKey.
func NewScorer(prefs Preferences, airlineTypes map[string]AirlineType, seatSpecs map[string]SeatSpec) *Scorer {
	return &Scorer{
		prefs:        prefs,
		weights:      ProfileWeights(prefs.Priority),
		airlineTypes: airlineTypes,
		seatSpecs:    seatSpecs,
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Score evaluates every flight and returns breakdowns in input order.
// Price normalization is relative to the candidate set: the cheapest
// flight scores 1.0, the most expensive 0.0.
func (s *Scorer) Score(flights []core.NormalizedFlight) []ScoreBreakdown {
	if len(flights) == 0 {
		return nil
	}

	minPrice := math.Inf(1)
	maxPrice := math.Inf(-1)
	for _, f := range flights {
		if p, ok := f.LowestPrice(); ok {
			minPrice = math.Min(minPrice, p)
			maxPrice = math.Max(maxPrice, p)
		}
	}
	priceRange := maxPrice - minPrice

	out := make([]ScoreBreakdown, 0, len(flights))
	for _, f := range flights {
		b := ScoreBreakdown{
			Flight:           f,
			PriceScore:       round4(s.scorePrice(f, minPrice, priceRange)),
			TimeScore:        round4(s.scoreTime(f.DepartureTime)),
			ComfortScore:     round4(s.scoreComfort(f)),
			ServiceScore:     round4(s.scoreService(f.Prices)),
			ReliabilityScore: round4(s.scoreReliability(f)),
			Priority:         s.prefs.Priority,
		}
		total := s.weights.Price*b.PriceScore +
			s.weights.Time*b.TimeScore +
			s.weights.Comfort*b.ComfortScore +
			s.weights.Service*b.ServiceScore +
			s.weights.Reliability*b.ReliabilityScore
		b.TotalScore = round4(total)
		out = append(out, b)
	}
	return out
}

func (s *Scorer) scorePrice(f core.NormalizedFlight, minPrice, priceRange float64) float64 {
	p, ok := f.LowestPrice()
	if !ok {
		return 0
	}
	if priceRange == 0 {
		return 1.0
	}
	return 1.0 - (p-minPrice)/priceRange
}

func (s *Scorer) scoreTime(departure time.Time) float64 {
	start, end := s.prefs.DepartureStart, s.prefs.DepartureEnd
	if start == nil || end == nil {
		return 0.5
	}
	dep := DayTime{Hour: departure.Hour(), Minute: departure.Minute()}
	if inWindow(*start, *end, dep) {
		return 1.0
	}
	const maxDecayHours = 6.0
	away := hoursFromWindow(*start, *end, dep)
	return math.Max(0, 1.0-away/maxDecayHours)
}

func (s *Scorer) scoreComfort(f core.NormalizedFlight) float64 {
	if s.seatSpecs == nil {
		return 0.5
	}
	spec, ok := s.seatSpecs[SeatSpecKey(f.AirlineCode, f.CabinClass)]
	if !ok {
		return 0.5
	}

	var scores []float64
	if s.prefs.MinSeatPitch != nil && spec.PitchInches > 0 {
		scores = append(scores, math.Min(spec.PitchInches / *s.prefs.MinSeatPitch, 1.0))
	}
	if s.prefs.MinSeatWidth != nil && spec.WidthInches > 0 {
		scores = append(scores, math.Min(spec.WidthInches / *s.prefs.MinSeatWidth, 1.0))
	}
	if len(scores) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

func (s *Scorer) scoreService(prices []core.NormalizedPrice) float64 {
	hasBaggage, hasMeal := false, false
	for _, p := range prices {
		hasBaggage = hasBaggage || p.IncludesBaggage
		hasMeal = hasMeal || p.IncludesMeal
	}

	score := 0.0
	if s.prefs.BaggageRequired {
		if hasBaggage {
			score += 0.5
		}
	} else {
		score += 0.5
	}
	if s.prefs.MealRequired {
		if hasMeal {
			score += 0.5
		}
	} else {
		score += 0.5
	}
	return score
}

func (s *Scorer) scoreReliability(f core.NormalizedFlight) float64 {
	base := 0.5
	if t, ok := s.airlineTypes[f.AirlineCode]; ok {
		if b, known := reliabilityBase[t]; known {
			base = b
		}
	}
	if len(f.MergedSources) > 1 {
		base = math.Min(base+0.2, 1.0)
	}
	return base
}

func inWindow(start, end, t DayTime) bool {
	s, e, m := start.minutes(), end.minutes(), t.minutes()
	if s <= e {
		return s <= m && m <= e
	}
	// Overnight window, e.g. 22:00 to 06:00.
	return m >= s || m <= e
}

// hoursFromWindow is the distance in hours from t to the nearest edge
// of the window; zero when inside.
func hoursFromWindow(start, end, t DayTime) float64 {
	s, e, m := start.minutes(), end.minutes(), t.minutes()
	var dist int
	if s <= e {
		switch {
		case m < s:
			dist = s - m
		case m > e:
			dist = m - e
		}
	} else if m > e && m < s {
		dist = min(m-e, s-m)
	}
	return float64(dist) / 60.0
}
