package score

import (
	"slices"

	"github.com/skyfare/skyfare/core"
)

// Filter applies the hard preference constraints before scoring. Every
// configured constraint excludes any flight failing it; unconfigured
// constraints pass everything. Flights without a price survive only
// when no price ceiling is set.
type Filter struct {
	prefs     Preferences
	seatSpecs map[string]SeatSpec
}

// NewFilter builds the hard pre-filter over the same preference set the
// scorer uses.
func NewFilter(prefs Preferences, seatSpecs map[string]SeatSpec) *Filter {
	return &Filter{prefs: prefs, seatSpecs: seatSpecs}
}

// Apply returns the flights that pass every configured constraint, in
// input order.
func (f *Filter) Apply(flights []core.NormalizedFlight) []core.NormalizedFlight {
	out := make([]core.NormalizedFlight, 0, len(flights))
	for _, fl := range flights {
		if f.passes(fl) {
			out = append(out, fl)
		}
	}
	return out
}

func (f *Filter) passes(fl core.NormalizedFlight) bool {
	p := f.prefs

	if p.MaxPrice != nil {
		low, ok := fl.LowestPrice()
		if !ok || low > *p.MaxPrice {
			return false
		}
	}

	if len(p.PreferredAirlines) > 0 && !slices.Contains(p.PreferredAirlines, fl.AirlineCode) {
		return false
	}
	if slices.Contains(p.ExcludedAirlines, fl.AirlineCode) {
		return false
	}

	if p.MaxStops != nil && fl.Stops > *p.MaxStops {
		return false
	}

	if p.HardWindow && p.DepartureStart != nil && p.DepartureEnd != nil {
		dep := DayTime{Hour: fl.DepartureTime.Hour(), Minute: fl.DepartureTime.Minute()}
		if !inWindow(*p.DepartureStart, *p.DepartureEnd, dep) {
			return false
		}
	}

	if p.BaggageRequired && !anyPrice(fl.Prices, func(pr core.NormalizedPrice) bool { return pr.IncludesBaggage }) {
		return false
	}
	if p.MealRequired && !anyPrice(fl.Prices, func(pr core.NormalizedPrice) bool { return pr.IncludesMeal }) {
		return false
	}

	if p.MinSeatPitch != nil || p.MinSeatWidth != nil {
		spec, ok := f.seatSpecs[SeatSpecKey(fl.AirlineCode, fl.CabinClass)]
		if !ok {
			return false
		}
		if p.MinSeatPitch != nil && spec.PitchInches < *p.MinSeatPitch {
			return false
		}
		if p.MinSeatWidth != nil && spec.WidthInches < *p.MinSeatWidth {
			return false
		}
	}

	return true
}

func anyPrice(prices []core.NormalizedPrice, pred func(core.NormalizedPrice) bool) bool {
	for _, p := range prices {
		if pred(p) {
			return true
		}
	}
	return false
}

// Rank filters, scores and orders flights by total score descending.
// Ties keep the merger's price ordering.
func Rank(flights []core.NormalizedFlight, prefs Preferences, airlineTypes map[string]AirlineType, seatSpecs map[string]SeatSpec) []ScoreBreakdown {
	kept := NewFilter(prefs, seatSpecs).Apply(flights)
	breakdowns := NewScorer(prefs, airlineTypes, seatSpecs).Score(kept)
	slices.SortStableFunc(breakdowns, func(a, b ScoreBreakdown) int {
		switch {
		case a.TotalScore > b.TotalScore:
			return -1
		case a.TotalScore < b.TotalScore:
			return 1
		default:
			return 0
		}
	})
	return breakdowns
}
