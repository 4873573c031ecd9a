package lufthansa

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

type scheduleResponse struct {
	ScheduleResource struct {
		Schedule []scheduleEntry `json:"Schedule"`
	} `json:"ScheduleResource"`
}

type scheduleEntry struct {
	TotalJourney struct {
		Duration string `json:"Duration"`
	} `json:"TotalJourney"`
	// Flight is a single object for direct flights and an array for
	// connections.
	Flight flightSegments `json:"Flight"`
}

type flightSegments []flightSegment

func (fs *flightSegments) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []flightSegment
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*fs = list
		return nil
	}
	var single flightSegment
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*fs = []flightSegment{single}
	return nil
}

type flightSegment struct {
	Departure struct {
		AirportCode        string `json:"AirportCode"`
		ScheduledTimeLocal struct {
			DateTime string `json:"DateTime"`
		} `json:"ScheduledTimeLocal"`
	} `json:"Departure"`
	Arrival struct {
		AirportCode        string `json:"AirportCode"`
		ScheduledTimeLocal struct {
			DateTime string `json:"DateTime"`
		} `json:"ScheduledTimeLocal"`
	} `json:"Arrival"`
	MarketingCarrier struct {
		AirlineID    string          `json:"AirlineID"`
		FlightNumber json.RawMessage `json:"FlightNumber"`
	} `json:"MarketingCarrier"`
	Equipment struct {
		AircraftCode string `json:"AircraftCode"`
	} `json:"Equipment"`
	Details struct {
		Stops struct {
			StopQuantity int `json:"StopQuantity"`
		} `json:"Stops"`
	} `json:"Details"`
}

func (s flightSegment) flightNumber() string {
	num := strings.Trim(string(s.MarketingCarrier.FlightNumber), `"`)
	return s.MarketingCarrier.AirlineID + num
}

// parseLocalTime handles the API's zone-less local datetimes. They are
// stored UTC-tagged; the minute precision keeps dedup keys stable.
func parseLocalTime(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseSchedules converts ScheduleResource entries into priceless
// NormalizedFlights. Multi-segment connections collapse to one flight
// with stops = segments-1.
func parseSchedules(schedules []scheduleEntry, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	for _, sched := range schedules {
		segments := sched.Flight
		if len(segments) == 0 {
			continue
		}
		first, last := segments[0], segments[len(segments)-1]

		dep, okDep := parseLocalTime(first.Departure.ScheduledTimeLocal.DateTime)
		arr, okArr := parseLocalTime(last.Arrival.ScheduledTimeLocal.DateTime)
		if !okDep || !okArr {
			logger.Warn("unparseable schedule times, skipping entry",
				"source", Name,
				"departure", first.Departure.ScheduledTimeLocal.DateTime,
				"arrival", last.Arrival.ScheduledTimeLocal.DateTime)
			continue
		}

		// TotalJourney is more reliable than local-time arithmetic,
		// which crosses timezones.
		duration, err := normalize.ParseISODuration(sched.TotalJourney.Duration)
		if err != nil || duration <= 0 {
			duration = normalize.DurationMinutes(dep, arr)
		}

		flightNumber := first.flightNumber()
		stops := first.Details.Stops.StopQuantity
		if len(segments) > 1 {
			nums := make([]string, len(segments))
			for i, seg := range segments {
				nums[i] = seg.flightNumber()
			}
			flightNumber = strings.Join(nums, " / ")
			stops = len(segments) - 1
		}

		airlineCode := first.MarketingCarrier.AirlineID
		flights = append(flights, core.NormalizedFlight{
			FlightNumber:    flightNumber,
			AirlineCode:     airlineCode,
			AirlineName:     airlineNames[airlineCode],
			Operator:        airlineCode,
			Origin:          first.Departure.AirportCode,
			Destination:     last.Arrival.AirportCode,
			DepartureTime:   dep,
			ArrivalTime:     arr,
			DurationMinutes: duration,
			CabinClass:      cabin,
			AircraftType:    first.Equipment.AircraftCode,
			Stops:           stops,
			Source:          core.SourceDirectCrawl,
			CrawledAt:       now,
		})
	}
	return flights
}
