// Package core defines the domain types shared by every stage of the
// crawl-normalize-merge-score pipeline: search requests, crawl tasks,
// normalized flights and prices, and crawl result envelopes.
package core

import (
	"fmt"
	"strings"
	"time"
)

// CabinClass is the seat product class requested in a search.
type CabinClass string

const (
	Economy        CabinClass = "ECONOMY"
	PremiumEconomy CabinClass = "PREMIUM_ECONOMY"
	Business       CabinClass = "BUSINESS"
	First          CabinClass = "FIRST"
)

// ParseCabinClass maps a case-insensitive string to a CabinClass,
// defaulting to Economy for unknown values.
func ParseCabinClass(s string) CabinClass {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PREMIUM_ECONOMY":
		return PremiumEconomy
	case "BUSINESS":
		return Business
	case "FIRST":
		return First
	default:
		return Economy
	}
}

// TripType distinguishes one-way, round-trip and multi-city searches.
type TripType string

const (
	OneWay    TripType = "ONE_WAY"
	RoundTrip TripType = "ROUND_TRIP"
	MultiCity TripType = "MULTI_CITY"
)

// DataSource tags flights and prices with their provenance.
type DataSource string

const (
	SourceGoogleProtobuf DataSource = "GOOGLE_PROTOBUF"
	SourceKiwiAPI        DataSource = "KIWI_API"
	SourceDirectCrawl    DataSource = "DIRECT_CRAWL"
	SourceOfficialAPI    DataSource = "OFFICIAL_API"
	SourceGDS            DataSource = "GDS"
)

// PassengerMix holds the requested passenger counts.
type PassengerMix struct {
	Adults       int `json:"adults"`
	Children     int `json:"children"`
	InfantsSeat  int `json:"infants_in_seat"`
	InfantsLap   int `json:"infants_on_lap"`
}

// DefaultPassengers is a single adult.
func DefaultPassengers() PassengerMix {
	return PassengerMix{Adults: 1}
}

// Total returns the total passenger count across all types.
func (p PassengerMix) Total() int {
	return p.Adults + p.Children + p.InfantsSeat + p.InfantsLap
}

// Validate enforces the passenger-count constraints: at least one adult,
// no negative counts, at most nine passengers total, and one adult per
// lap infant.
func (p PassengerMix) Validate() error {
	if p.Adults < 1 {
		return fmt.Errorf("at least one adult is required")
	}
	if p.Children < 0 || p.InfantsSeat < 0 || p.InfantsLap < 0 {
		return fmt.Errorf("passenger counts must be non-negative")
	}
	if p.Total() > 9 {
		return fmt.Errorf("total passengers (%d) exceeds maximum of 9", p.Total())
	}
	if p.InfantsLap > p.Adults {
		return fmt.Errorf("each infant on lap requires at least one adult")
	}
	return nil
}

// SearchRequest is an immutable flight search query.
type SearchRequest struct {
	Origin        string       `json:"origin"`
	Destination   string       `json:"destination"`
	DepartureDate time.Time    `json:"departure_date"`
	ReturnDate    *time.Time   `json:"return_date,omitempty"`
	TripType      TripType     `json:"trip_type"`
	CabinClass    CabinClass   `json:"cabin_class"`
	Passengers    PassengerMix `json:"passengers"`
	Currency      string       `json:"currency"`
}

// NewSearchRequest builds a one-way economy request with defaults applied.
func NewSearchRequest(origin, destination string, departureDate time.Time) SearchRequest {
	return SearchRequest{
		Origin:        strings.ToUpper(origin),
		Destination:   strings.ToUpper(destination),
		DepartureDate: departureDate,
		TripType:      OneWay,
		CabinClass:    Economy,
		Passengers:    DefaultPassengers(),
		Currency:      "KRW",
	}
}

func validIATAAirport(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Validate checks the request invariants: valid IATA codes, distinct
// origin/destination, a usable passenger mix, and return date ordering.
func (r SearchRequest) Validate() error {
	if !validIATAAirport(r.Origin) {
		return fmt.Errorf("invalid origin airport code %q", r.Origin)
	}
	if !validIATAAirport(r.Destination) {
		return fmt.Errorf("invalid destination airport code %q", r.Destination)
	}
	if r.Origin == r.Destination {
		return fmt.Errorf("origin and destination must differ")
	}
	if r.DepartureDate.IsZero() {
		return fmt.Errorf("departure date is required")
	}
	if r.ReturnDate != nil && r.ReturnDate.Before(r.DepartureDate) {
		return fmt.Errorf("return date %s is before departure date %s",
			r.ReturnDate.Format(time.DateOnly), r.DepartureDate.Format(time.DateOnly))
	}
	if r.TripType == RoundTrip && r.ReturnDate == nil {
		return fmt.Errorf("return date is required for round-trip searches")
	}
	if err := r.Passengers.Validate(); err != nil {
		return err
	}
	if len(r.Currency) != 3 {
		return fmt.Errorf("invalid currency code %q", r.Currency)
	}
	return nil
}

// CrawlTask pairs a search request with the source that should serve it.
type CrawlTask struct {
	Request  SearchRequest `json:"search_request"`
	Source   DataSource    `json:"source"`
	Priority int           `json:"priority"`
	// Deadline overrides the per-layer default timeout when non-zero.
	Deadline time.Duration `json:"deadline,omitempty"`
}

// NormalizedPrice is a single price observation for a flight.
type NormalizedPrice struct {
	Amount          float64    `json:"amount"`
	Currency        string     `json:"currency"`
	Source          DataSource `json:"source"`
	FareClass       string     `json:"fare_class,omitempty"`
	BookingURL      string     `json:"booking_url,omitempty"`
	IncludesBaggage bool       `json:"includes_baggage"`
	IncludesMeal    bool       `json:"includes_meal"`
	SeatSelection   bool       `json:"seat_selection_included"`
	CrawledAt       time.Time  `json:"crawled_at"`
}

// Validate enforces the price invariants.
func (p NormalizedPrice) Validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("price amount must be positive, got %v", p.Amount)
	}
	if p.Currency == "" {
		return fmt.Errorf("price currency is required")
	}
	return nil
}

// NormalizedFlight is the unified flight representation produced by every
// source adapter. Multi-segment itineraries collapse to a single flight
// with Stops = segments-1; calendar-only sources emit synthetic rows with
// Synthetic set, zero duration, and ArrivalTime == DepartureTime.
type NormalizedFlight struct {
	FlightNumber string     `json:"flight_number"`
	AirlineCode  string     `json:"airline_code"`
	AirlineName  string     `json:"airline_name,omitempty"`
	Operator     string     `json:"operator,omitempty"`

	Origin      string `json:"origin"`
	Destination string `json:"destination"`

	DepartureTime   time.Time `json:"departure_time"`
	ArrivalTime     time.Time `json:"arrival_time"`
	DurationMinutes int       `json:"duration_minutes"`

	CabinClass   CabinClass `json:"cabin_class"`
	AircraftType string     `json:"aircraft_type,omitempty"`
	Stops        int        `json:"stops"`
	Synthetic    bool       `json:"synthetic,omitempty"`

	Prices []NormalizedPrice `json:"prices"`

	Source    DataSource `json:"source"`
	CrawledAt time.Time  `json:"crawled_at"`

	// MergedSources is populated by the merger when the flight was
	// observed from more than one source. It is never set by adapters.
	MergedSources []DataSource `json:"merged_sources,omitempty"`
}

// DedupKey identifies a flight across sources for merging. It is a pure
// function of the flight number, route, and departure time truncated to
// the minute.
func (f NormalizedFlight) DedupKey() string {
	dep := f.DepartureTime.UTC().Truncate(time.Minute)
	return fmt.Sprintf("%s|%s|%s|%s", f.FlightNumber, f.Origin, f.Destination, dep.Format("2006-01-02T15:04Z"))
}

// LowestPrice returns the minimum price amount across all observations,
// or false when no price is attached.
func (f NormalizedFlight) LowestPrice() (float64, bool) {
	if len(f.Prices) == 0 {
		return 0, false
	}
	low := f.Prices[0].Amount
	for _, p := range f.Prices[1:] {
		if p.Amount < low {
			low = p.Amount
		}
	}
	return low, true
}

// Validate enforces the universal flight invariants from the pipeline
// contract.
func (f NormalizedFlight) Validate() error {
	if f.FlightNumber == "" {
		return fmt.Errorf("flight number is required")
	}
	if !validIATAAirport(f.Origin) {
		return fmt.Errorf("flight %s: invalid origin %q", f.FlightNumber, f.Origin)
	}
	if !validIATAAirport(f.Destination) {
		return fmt.Errorf("flight %s: invalid destination %q", f.FlightNumber, f.Destination)
	}
	if f.Origin == f.Destination {
		return fmt.Errorf("flight %s: origin equals destination", f.FlightNumber)
	}
	if f.DurationMinutes < 0 {
		return fmt.Errorf("flight %s: negative duration", f.FlightNumber)
	}
	if f.Stops < 0 {
		return fmt.Errorf("flight %s: negative stop count", f.FlightNumber)
	}
	for i, p := range f.Prices {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("flight %s price %d: %w", f.FlightNumber, i, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the flight, including its price list and
// merged-source annotations.
func (f NormalizedFlight) Clone() NormalizedFlight {
	out := f
	out.Prices = append([]NormalizedPrice(nil), f.Prices...)
	out.MergedSources = append([]DataSource(nil), f.MergedSources...)
	return out
}

// SyntheticFlightNumber builds the synthetic identifier used for
// calendar-derived rows that carry no real flight identity, e.g.
// "TW-ICNNRT".
func SyntheticFlightNumber(airlineCode, origin, destination string) string {
	return fmt.Sprintf("%s-%s%s", airlineCode, strings.ToUpper(origin), strings.ToUpper(destination))
}

// CrawlResult is the envelope every adapter returns from Crawl. Adapters
// never let errors escape: failures are captured here with Success=false.
type CrawlResult struct {
	Flights    []NormalizedFlight `json:"flights"`
	Source     DataSource         `json:"source"`
	CrawledAt  time.Time          `json:"crawled_at"`
	DurationMS int64              `json:"duration_ms"`
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
}

// NewCrawlResult builds a successful envelope.
func NewCrawlResult(source DataSource, flights []NormalizedFlight, elapsed time.Duration) CrawlResult {
	return CrawlResult{
		Flights:    flights,
		Source:     source,
		CrawledAt:  time.Now().UTC(),
		DurationMS: elapsed.Milliseconds(),
		Success:    true,
	}
}

// FailedCrawlResult builds a failure envelope with an empty flight list.
func FailedCrawlResult(source DataSource, err error, elapsed time.Duration) CrawlResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return CrawlResult{
		Source:     source,
		CrawledAt:  time.Now().UTC(),
		DurationMS: elapsed.Milliseconds(),
		Success:    false,
		Error:      msg,
	}
}
