package hainan

import (
	"strconv"
	"time"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/sources/normalize"
)

const (
	airlineCode = "HU"
	airlineName = "Hainan Airlines"
)

type fareTrendsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		OrgCode string `json:"orgCode"`
		DstCode string `json:"dstCode"`
		// The API misspells calendar.
		PriceCalendar []calendarDay `json:"priceCalandar"`
	} `json:"data"`
}

type calendarDay struct {
	// Day is compact YYYYMMDD, Price a CNY string.
	Day   string `json:"day"`
	Price string `json:"price"`
}

// parseFareTrends emits one synthetic row per priced calendar day.
// The endpoint only ever quotes CNY.
func parseFareTrends(raw *fareTrendsResponse, origin, destination string, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	if raw.Data.OrgCode != "" {
		origin = raw.Data.OrgCode
	}
	if raw.Data.DstCode != "" {
		destination = raw.Data.DstCode
	}

	var flights []core.NormalizedFlight
	for _, day := range raw.Data.PriceCalendar {
		if day.Day == "" || day.Price == "" {
			continue
		}
		amount, err := strconv.ParseFloat(day.Price, 64)
		if err != nil || amount <= 0 {
			continue
		}
		date, err := normalize.ParseCompactDate(day.Day)
		if err != nil {
			logger.Warn("invalid calendar date, skipping", "source", Name, "date", day.Day)
			continue
		}
		flights = append(flights, normalize.SyntheticCalendarFlight(
			airlineCode, airlineName, origin, destination, date,
			core.NormalizedPrice{
				Amount:    amount,
				Currency:  "CNY",
				Source:    core.SourceDirectCrawl,
				FareClass: "lowest",
				CrawledAt: now,
			},
			cabin, core.SourceDirectCrawl,
		))
	}
	return flights
}
