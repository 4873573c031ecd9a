package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
)

// FlightStore writes normalized flights to the flights and prices
// tables. It is append-only: re-crawled flights produce new rows, and
// higher layers decide when to re-ingest.
type FlightStore struct {
	db *sql.DB

	mu          sync.Mutex
	airlineIDs  map[string]uuid.UUID
	airportIDs  map[string]uuid.UUID
	cacheWarmed bool
}

// NewFlightStore builds a writer over the connection. The code-to-id
// caches warm lazily on the first store call.
func NewFlightStore(pg *PostgresDB) *FlightStore {
	return &FlightStore{
		db:         pg.GetDB(),
		airlineIDs: map[string]uuid.UUID{},
		airportIDs: map[string]uuid.UUID{},
	}
}

// warmCache loads the airline and airport code-to-id maps once.
func (s *FlightStore) warmCache(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cacheWarmed {
		return nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT code, id FROM airlines`)
	if err != nil {
		return fmt.Errorf("warm airline cache: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		var id uuid.UUID
		if err := rows.Scan(&code, &id); err != nil {
			return fmt.Errorf("scan airline row: %w", err)
		}
		s.airlineIDs[code] = id
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate airline rows: %w", err)
	}

	airportRows, err := s.db.QueryContext(ctx, `SELECT code, id FROM airports`)
	if err != nil {
		return fmt.Errorf("warm airport cache: %w", err)
	}
	defer airportRows.Close()
	for airportRows.Next() {
		var code string
		var id uuid.UUID
		if err := airportRows.Scan(&code, &id); err != nil {
			return fmt.Errorf("scan airport row: %w", err)
		}
		s.airportIDs[code] = id
	}
	if err := airportRows.Err(); err != nil {
		return fmt.Errorf("iterate airport rows: %w", err)
	}

	s.cacheWarmed = true
	logger.Debug("reference cache warmed",
		"airlines", len(s.airlineIDs), "airports", len(s.airportIDs))
	return nil
}

// StoreFlights persists the flights and their prices inside one
// transaction, in input order, and returns the number of flights
// written. Flights referencing unknown airline or airport codes are
// logged and skipped, never failed.
func (s *FlightStore) StoreFlights(ctx context.Context, flights []core.NormalizedFlight) (int, error) {
	if len(flights) == 0 {
		return 0, nil
	}
	if err := s.warmCache(ctx); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin store transaction: %w", err)
	}
	defer tx.Rollback()

	stored := 0
	for _, f := range flights {
		airlineID, ok := s.airlineIDs[f.AirlineCode]
		if !ok {
			logger.Warn("unknown airline code, skipping flight",
				"airline", f.AirlineCode, "flight", f.FlightNumber)
			continue
		}
		originID, ok := s.airportIDs[f.Origin]
		if !ok {
			logger.Warn("unknown airport code, skipping flight",
				"airport", f.Origin, "flight", f.FlightNumber)
			continue
		}
		destID, ok := s.airportIDs[f.Destination]
		if !ok {
			logger.Warn("unknown airport code, skipping flight",
				"airport", f.Destination, "flight", f.FlightNumber)
			continue
		}

		flightID := uuid.New()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO flights (
				id, airline_id, flight_number,
				origin_airport_id, destination_airport_id,
				departure_time, arrival_time, duration_minutes, stops,
				aircraft_type, cabin_class, is_synthetic, source, crawled_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			flightID, airlineID, f.FlightNumber,
			originID, destID,
			f.DepartureTime, f.ArrivalTime, f.DurationMinutes, f.Stops,
			nullString(f.AircraftType), string(f.CabinClass), f.Synthetic,
			string(f.Source), f.CrawledAt,
		)
		if err != nil {
			return 0, fmt.Errorf("insert flight %s: %w", f.FlightNumber, err)
		}

		for _, p := range f.Prices {
			amount := decimal.NewFromFloat(p.Amount).Round(2)
			_, err := tx.ExecContext(ctx, `
				INSERT INTO prices (
					id, flight_id, amount, currency, source,
					fare_class, booking_url,
					includes_baggage, includes_meal, seat_selection_included,
					crawled_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				uuid.New(), flightID, amount, p.Currency, string(p.Source),
				nullString(p.FareClass), nullString(p.BookingURL),
				p.IncludesBaggage, p.IncludesMeal, p.SeatSelection,
				p.CrawledAt,
			)
			if err != nil {
				return 0, fmt.Errorf("insert price for flight %s: %w", f.FlightNumber, err)
			}
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit store transaction: %w", err)
	}

	logger.Info("stored flights", "count", stored, "input", len(flights))
	return stored, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
