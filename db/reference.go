package db

import (
	"context"
	"fmt"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/score"
)

// LoadSeatSpecs reads the seat-spec table into the lookup map the
// scorer and filter consume, keyed {airline_code}_{cabin_class}.
func (p *PostgresDB) LoadSeatSpecs(ctx context.Context) (map[string]score.SeatSpec, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT airline_code, cabin_class,
		       COALESCE(seat_pitch_inches, 0), COALESCE(seat_width_inches, 0)
		FROM seat_specs`)
	if err != nil {
		return nil, fmt.Errorf("load seat specs: %w", err)
	}
	defer rows.Close()

	out := map[string]score.SeatSpec{}
	for rows.Next() {
		var airline, cabin string
		var spec score.SeatSpec
		if err := rows.Scan(&airline, &cabin, &spec.PitchInches, &spec.WidthInches); err != nil {
			return nil, fmt.Errorf("scan seat spec row: %w", err)
		}
		out[score.SeatSpecKey(airline, core.CabinClass(cabin))] = spec
	}
	return out, rows.Err()
}

// LoadAirlineTypes reads the airline classification used by the
// reliability subscore, keyed by IATA code.
func (p *PostgresDB) LoadAirlineTypes(ctx context.Context) (map[string]score.AirlineType, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT code, type FROM airlines`)
	if err != nil {
		return nil, fmt.Errorf("load airline types: %w", err)
	}
	defer rows.Close()

	out := map[string]score.AirlineType{}
	for rows.Next() {
		var code, typ string
		if err := rows.Scan(&code, &typ); err != nil {
			return nil, fmt.Errorf("scan airline row: %w", err)
		}
		out[code] = score.AirlineType(typ)
	}
	return out, rows.Err()
}
