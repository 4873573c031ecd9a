// Package normalize holds the normalization helpers shared by source
// adapters: synthetic calendar rows, duration arithmetic, and the
// date formats that recur across airline endpoints.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/skyfare/skyfare/core"
)

// SyntheticCalendarFlight builds the per-day lowest-fare row emitted
// by sources that expose calendar data without flight identity. The
// row has zero duration and arrival equal to departure.
func SyntheticCalendarFlight(airlineCode, airlineName, origin, destination string, date time.Time, price core.NormalizedPrice, cabin core.CabinClass, source core.DataSource) core.NormalizedFlight {
	now := time.Now().UTC()
	return core.NormalizedFlight{
		FlightNumber:    core.SyntheticFlightNumber(airlineCode, origin, destination),
		AirlineCode:     airlineCode,
		AirlineName:     airlineName,
		Operator:        airlineCode,
		Origin:          origin,
		Destination:     destination,
		DepartureTime:   date,
		ArrivalTime:     date,
		DurationMinutes: 0,
		CabinClass:      cabin,
		Synthetic:       true,
		Prices:          []core.NormalizedPrice{price},
		Source:          source,
		CrawledAt:       now,
	}
}

// DurationMinutes computes arrival minus departure in minutes, wrapped
// into [0, 24h) so overnight arrivals recorded without a date stay
// positive.
func DurationMinutes(dep, arr time.Time) int {
	minutes := int(arr.Sub(dep).Minutes())
	if minutes < 0 {
		minutes = (minutes%1440 + 1440) % 1440
	}
	return minutes
}

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?$`)

// ParseISODuration converts an ISO-8601 PTnHnM duration into minutes.
func ParseISODuration(s string) (int, error) {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", s)
	}
	hours := 0
	if m[1] != "" {
		hours, _ = strconv.Atoi(m[1])
	}
	minutes := 0
	if m[2] != "" {
		minutes, _ = strconv.Atoi(m[2])
	}
	return hours*60 + minutes, nil
}

// ParseCompactDate parses a YYYYMMDD date into a UTC midnight instant.
func ParseCompactDate(s string) (time.Time, error) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid compact date %q: %w", s, err)
	}
	return t.UTC(), nil
}
