package twayair

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	airlineCode = "TW"
	airlineName = "T'way Air"
)

type lowestFareResponse struct {
	OneWay    map[string]string `json:"OW"`
	RoundTrip map[string]string `json:"RT"`
}

// parseLowestFares decodes the pipe-delimited per-day fare strings:
//
//	date|dep|arr|soldOut|bizSoldOut|operating|bizOp|fare|totalFare|fareClass
//
// and emits one synthetic row per operating, bookable date.
func parseLowestFares(raw *lowestFareResponse, origin, destination string, cabin core.CabinClass, currency string) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	days := make([]string, 0, len(raw.OneWay))
	for day := range raw.OneWay {
		days = append(days, day)
	}
	sort.Strings(days)

	for _, day := range days {
		fareStr := raw.OneWay[day]
		if fareStr == "" {
			continue
		}
		parts := strings.Split(fareStr, "|")
		if len(parts) < 9 {
			continue
		}
		soldOut := parts[3] == "Y"
		operating := parts[5] == "Y"
		if !operating || soldOut {
			continue
		}
		total, err := strconv.ParseFloat(parts[8], 64)
		if err != nil || total <= 0 {
			continue
		}
		date, err := normalize.ParseCompactDate(parts[0])
		if err != nil {
			logger.Warn("invalid fare date, skipping", "source", Name, "date", parts[0])
			continue
		}

		dep := parts[1]
		if dep == "" {
			dep = origin
		}
		arr := parts[2]
		if arr == "" {
			arr = destination
		}
		fareClass := "lowest"
		if len(parts) > 9 && parts[9] != "" {
			fareClass = parts[9]
		}

		flights = append(flights, normalize.SyntheticCalendarFlight(
			airlineCode, airlineName, dep, arr, date,
			core.NormalizedPrice{
				Amount:    total,
				Currency:  currency,
				Source:    core.SourceDirectCrawl,
				FareClass: fareClass,
				CrawledAt: now,
			},
			cabin, core.SourceDirectCrawl,
		))
	}
	return flights
}
