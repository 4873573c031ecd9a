package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/skyfare/skyfare/config"
)

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	db *sql.DB
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg config.PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &PostgresDB{db: db}, nil
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// GetDB returns the underlying database connection
func (p *PostgresDB) GetDB() *sql.DB {
	return p.db
}

// InitSchema initializes the database schema
func (p *PostgresDB) InitSchema() error {
	_, err := p.db.Exec(`
		-- Airports table
		CREATE TABLE IF NOT EXISTS airports (
			id UUID PRIMARY KEY,
			code VARCHAR(3) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			city VARCHAR(255) NOT NULL,
			country VARCHAR(255) NOT NULL,
			timezone VARCHAR(64),
			latitude DECIMAL(10, 6),
			longitude DECIMAL(10, 6)
		);

		-- Airlines table
		CREATE TABLE IF NOT EXISTS airlines (
			id UUID PRIMARY KEY,
			code VARCHAR(3) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			type VARCHAR(10) NOT NULL DEFAULT 'LCC',
			alliance VARCHAR(20),
			country VARCHAR(255)
		);

		-- Crawled flights, append-only
		CREATE TABLE IF NOT EXISTS flights (
			id UUID PRIMARY KEY,
			airline_id UUID NOT NULL REFERENCES airlines(id),
			flight_number VARCHAR(20) NOT NULL,
			origin_airport_id UUID NOT NULL REFERENCES airports(id),
			destination_airport_id UUID NOT NULL REFERENCES airports(id),
			departure_time TIMESTAMPTZ NOT NULL,
			arrival_time TIMESTAMPTZ NOT NULL,
			duration_minutes INT NOT NULL DEFAULT 0,
			stops INT NOT NULL DEFAULT 0,
			aircraft_type VARCHAR(100),
			cabin_class VARCHAR(20) NOT NULL,
			is_synthetic BOOLEAN NOT NULL DEFAULT FALSE,
			source VARCHAR(30) NOT NULL,
			crawled_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_flights_route_departure
			ON flights (origin_airport_id, destination_airport_id, departure_time);
		CREATE INDEX IF NOT EXISTS idx_flights_crawled_at ON flights (crawled_at);

		-- Price observations, append-only
		CREATE TABLE IF NOT EXISTS prices (
			id UUID PRIMARY KEY,
			flight_id UUID NOT NULL REFERENCES flights(id) ON DELETE CASCADE,
			amount DECIMAL(12, 2) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			source VARCHAR(30) NOT NULL,
			fare_class VARCHAR(50),
			booking_url TEXT,
			includes_baggage BOOLEAN NOT NULL DEFAULT FALSE,
			includes_meal BOOLEAN NOT NULL DEFAULT FALSE,
			seat_selection_included BOOLEAN NOT NULL DEFAULT FALSE,
			crawled_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_prices_flight_id ON prices (flight_id);

		-- Recurring route sweeps fired by the scheduler
		CREATE TABLE IF NOT EXISTS scheduled_sweeps (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			cron_expression VARCHAR(100) NOT NULL,
			origin VARCHAR(3) NOT NULL,
			destination VARCHAR(3) NOT NULL,
			days_ahead INT NOT NULL DEFAULT 30,
			cabin_class VARCHAR(20) NOT NULL DEFAULT 'ECONOMY',
			currency VARCHAR(3) NOT NULL DEFAULT 'KRW',
			sources TEXT,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			last_run TIMESTAMPTZ
		);

		-- Seat specifications for comfort scoring
		CREATE TABLE IF NOT EXISTS seat_specs (
			id SERIAL PRIMARY KEY,
			airline_code VARCHAR(3) NOT NULL,
			cabin_class VARCHAR(20) NOT NULL,
			seat_pitch_inches DECIMAL(5, 1),
			seat_width_inches DECIMAL(5, 1),
			UNIQUE (airline_code, cabin_class)
		);
	`)

	return err
}
