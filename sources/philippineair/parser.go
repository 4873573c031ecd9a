package philippineair

import (
	"strings"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
)

const (
	airlineCode = "PR"
	airlineName = "Philippine Airlines"
)

type statusLeg struct {
	// FltID looks like "PR 0400".
	FltID string `json:"fltId"`
	AcOwn string `json:"acOwn"`
	// Stations and scheduled local times.
	DepStn        string `json:"depStn"`
	ArrStn        string `json:"arrStn"`
	Std           string `json:"std"`
	Sta           string `json:"sta"`
	DepAirport    string `json:"dep_airport"`
	ArrAirport    string `json:"arr_airport"`
	Datop         string `json:"datop"`
	Status        string `json:"status"`
	StatusGeneral string `json:"StatusGeneral"`
}

type statusResponse struct {
	ReplyType string `json:"reply_type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   struct {
		Status string      `json:"status"`
		Leg    []statusLeg `json:"leg"`
	} `json:"Details"`
}

// parseStatusTime reads "2006-01-02 15:04:05" local airport times.
// They are stored as UTC for consistency with the other sources.
func parseStatusTime(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		return time.Parse("2006-01-02T15:04:05", value)
	}
	return t, nil
}

// parseStatus emits one priceless flight per scheduled leg, deduped by
// flight id and operating date.
func parseStatus(raw *statusResponse, cabin core.CabinClass) []core.NormalizedFlight {
	if raw.Details.Status != "okay" {
		return nil
	}
	now := time.Now().UTC()
	seen := make(map[string]struct{})
	var flights []core.NormalizedFlight

	for _, leg := range raw.Details.Leg {
		if leg.FltID == "" || leg.Std == "" || leg.Sta == "" {
			continue
		}
		dedup := leg.FltID + ":" + leg.Datop
		if _, ok := seen[dedup]; ok {
			continue
		}
		seen[dedup] = struct{}{}

		departure, err := parseStatusTime(leg.Std)
		if err != nil {
			logger.Warn("invalid scheduled departure, skipping", "source", Name, "value", leg.Std)
			continue
		}
		arrival, err := parseStatusTime(leg.Sta)
		if err != nil {
			logger.Warn("invalid scheduled arrival, skipping", "source", Name, "value", leg.Sta)
			continue
		}

		// Arrival before departure means an overnight leg.
		minutes := int(arrival.Sub(departure).Minutes())
		if minutes < 0 {
			minutes += 24 * 60
		}

		code := airlineCode
		if parts := strings.Fields(leg.FltID); len(parts) > 0 {
			code = parts[0]
		}
		name := ""
		if code == airlineCode {
			name = airlineName
		}
		operator := leg.AcOwn
		if operator == "" {
			operator = code
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:    strings.ReplaceAll(leg.FltID, " ", ""),
			AirlineCode:     code,
			AirlineName:     name,
			Operator:        operator,
			Origin:          leg.DepStn,
			Destination:     leg.ArrStn,
			DepartureTime:   departure,
			ArrivalTime:     arrival,
			DurationMinutes: minutes,
			CabinClass:      cabin,
			Source:          core.SourceDirectCrawl,
			CrawledAt:       now,
		})
	}
	return flights
}
