package db

import (
	"fmt"
	"log"

	"github.com/google/uuid"
)

// SeedReferenceData seeds the airline, airport and seat-spec tables the
// crawl pipeline resolves against. Each table seeds only when empty.
func (p *PostgresDB) SeedReferenceData() error {
	var count int
	if err := p.db.QueryRow("SELECT COUNT(*) FROM airports").Scan(&count); err != nil {
		return fmt.Errorf("failed to check if airports table is empty: %w", err)
	}
	if count == 0 {
		log.Println("Seeding airports data...")
		if err := p.seedAirports(); err != nil {
			return fmt.Errorf("failed to seed airports: %w", err)
		}
	}

	if err := p.db.QueryRow("SELECT COUNT(*) FROM airlines").Scan(&count); err != nil {
		return fmt.Errorf("failed to check if airlines table is empty: %w", err)
	}
	if count == 0 {
		log.Println("Seeding airlines data...")
		if err := p.seedAirlines(); err != nil {
			return fmt.Errorf("failed to seed airlines: %w", err)
		}
	}

	if err := p.db.QueryRow("SELECT COUNT(*) FROM seat_specs").Scan(&count); err != nil {
		return fmt.Errorf("failed to check if seat_specs table is empty: %w", err)
	}
	if count == 0 {
		log.Println("Seeding seat spec data...")
		if err := p.seedSeatSpecs(); err != nil {
			return fmt.Errorf("failed to seed seat specs: %w", err)
		}
	}

	return nil
}

// seedAirports loads the airports the crawled routes touch most.
func (p *PostgresDB) seedAirports() error {
	airports := [][]string{
		{"ICN", "Incheon International Airport", "Seoul", "South Korea", "Asia/Seoul", "37.4602", "126.4407"},
		{"GMP", "Gimpo International Airport", "Seoul", "South Korea", "Asia/Seoul", "37.5583", "126.7906"},
		{"PUS", "Gimhae International Airport", "Busan", "South Korea", "Asia/Seoul", "35.1795", "128.9382"},
		{"CJU", "Jeju International Airport", "Jeju", "South Korea", "Asia/Seoul", "33.5113", "126.4930"},
		{"NRT", "Narita International Airport", "Tokyo", "Japan", "Asia/Tokyo", "35.7720", "140.3929"},
		{"HND", "Tokyo Haneda Airport", "Tokyo", "Japan", "Asia/Tokyo", "35.5494", "139.7798"},
		{"KIX", "Kansai International Airport", "Osaka", "Japan", "Asia/Tokyo", "34.4342", "135.2440"},
		{"FUK", "Fukuoka Airport", "Fukuoka", "Japan", "Asia/Tokyo", "33.5859", "130.4500"},
		{"PEK", "Beijing Capital International Airport", "Beijing", "China", "Asia/Shanghai", "40.0799", "116.6031"},
		{"PVG", "Shanghai Pudong International Airport", "Shanghai", "China", "Asia/Shanghai", "31.1443", "121.8083"},
		{"HKG", "Hong Kong International Airport", "Hong Kong", "Hong Kong", "Asia/Hong_Kong", "22.3080", "113.9185"},
		{"TPE", "Taiwan Taoyuan International Airport", "Taipei", "Taiwan", "Asia/Taipei", "25.0777", "121.2328"},
		{"BKK", "Suvarnabhumi Airport", "Bangkok", "Thailand", "Asia/Bangkok", "13.6900", "100.7501"},
		{"SGN", "Tan Son Nhat International Airport", "Ho Chi Minh City", "Vietnam", "Asia/Ho_Chi_Minh", "10.8188", "106.6520"},
		{"HAN", "Noi Bai International Airport", "Hanoi", "Vietnam", "Asia/Ho_Chi_Minh", "21.2212", "105.8072"},
		{"DAD", "Da Nang International Airport", "Da Nang", "Vietnam", "Asia/Ho_Chi_Minh", "16.0439", "108.1994"},
		{"MNL", "Ninoy Aquino International Airport", "Manila", "Philippines", "Asia/Manila", "14.5086", "121.0194"},
		{"CEB", "Mactan-Cebu International Airport", "Cebu", "Philippines", "Asia/Manila", "10.3075", "123.9790"},
		{"KUL", "Kuala Lumpur International Airport", "Kuala Lumpur", "Malaysia", "Asia/Kuala_Lumpur", "2.7456", "101.7099"},
		{"SIN", "Singapore Changi Airport", "Singapore", "Singapore", "Asia/Singapore", "1.3644", "103.9915"},
		{"HKT", "Phuket International Airport", "Phuket", "Thailand", "Asia/Bangkok", "8.1132", "98.3169"},
		{"HGH", "Hangzhou Xiaoshan International Airport", "Hangzhou", "China", "Asia/Shanghai", "30.2295", "120.4344"},
		{"HAK", "Haikou Meilan International Airport", "Haikou", "China", "Asia/Shanghai", "19.9349", "110.4590"},
		{"DXB", "Dubai International Airport", "Dubai", "United Arab Emirates", "Asia/Dubai", "25.2532", "55.3657"},
		{"DOH", "Hamad International Airport", "Doha", "Qatar", "Asia/Qatar", "25.2731", "51.6081"},
		{"IST", "Istanbul Airport", "Istanbul", "Turkey", "Europe/Istanbul", "41.2608", "28.7418"},
		{"FRA", "Frankfurt Airport", "Frankfurt", "Germany", "Europe/Berlin", "50.0379", "8.5622"},
		{"MUC", "Munich Airport", "Munich", "Germany", "Europe/Berlin", "48.3537", "11.7750"},
		{"CDG", "Paris Charles de Gaulle Airport", "Paris", "France", "Europe/Paris", "49.0097", "2.5479"},
		{"AMS", "Amsterdam Airport Schiphol", "Amsterdam", "Netherlands", "Europe/Amsterdam", "52.3105", "4.7683"},
		{"WAW", "Warsaw Chopin Airport", "Warsaw", "Poland", "Europe/Warsaw", "52.1657", "20.9671"},
		{"BUD", "Budapest Ferenc Liszt International Airport", "Budapest", "Hungary", "Europe/Budapest", "47.4298", "19.2611"},
		{"LHR", "London Heathrow Airport", "London", "United Kingdom", "Europe/London", "51.4700", "-0.4543"},
		{"AKL", "Auckland Airport", "Auckland", "New Zealand", "Pacific/Auckland", "-37.0082", "174.7850"},
		{"ADD", "Addis Ababa Bole International Airport", "Addis Ababa", "Ethiopia", "Africa/Addis_Ababa", "8.9779", "38.7993"},
		{"LAX", "Los Angeles International Airport", "Los Angeles", "USA", "America/Los_Angeles", "33.9416", "-118.4085"},
		{"JFK", "John F. Kennedy International Airport", "New York", "USA", "America/New_York", "40.6413", "-73.7781"},
	}

	stmt, err := p.db.Prepare(`
		INSERT INTO airports (id, code, name, city, country, timezone, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range airports {
		if _, err := stmt.Exec(uuid.New(), a[0], a[1], a[2], a[3], a[4], a[5], a[6]); err != nil {
			return fmt.Errorf("insert airport %s: %w", a[0], err)
		}
	}
	return nil
}

// seedAirlines loads the carriers the source adapters cover, with the
// service classification the reliability subscore keys on.
func (p *PostgresDB) seedAirlines() error {
	airlines := [][]string{
		{"KE", "Korean Air", "FSC", "SkyTeam", "South Korea"},
		{"OZ", "Asiana Airlines", "FSC", "Star Alliance", "South Korea"},
		{"LJ", "Jin Air", "LCC", "", "South Korea"},
		{"7C", "Jeju Air", "LCC", "", "South Korea"},
		{"TW", "T'way Air", "LCC", "", "South Korea"},
		{"BX", "Air Busan", "LCC", "", "South Korea"},
		{"RS", "Air Seoul", "LCC", "", "South Korea"},
		{"ZE", "Eastar Jet", "LCC", "", "South Korea"},
		{"YP", "Air Premia", "LCC", "", "South Korea"},
		{"NH", "All Nippon Airways", "FSC", "Star Alliance", "Japan"},
		{"JL", "Japan Airlines", "FSC", "Oneworld", "Japan"},
		{"SQ", "Singapore Airlines", "FSC", "Star Alliance", "Singapore"},
		{"CX", "Cathay Pacific", "FSC", "Oneworld", "Hong Kong"},
		{"TG", "Thai Airways", "FSC", "Star Alliance", "Thailand"},
		{"VN", "Vietnam Airlines", "FSC", "SkyTeam", "Vietnam"},
		{"MH", "Malaysia Airlines", "FSC", "Oneworld", "Malaysia"},
		{"PR", "Philippine Airlines", "FSC", "", "Philippines"},
		{"HU", "Hainan Airlines", "FSC", "", "China"},
		{"BR", "EVA Air", "FSC", "Star Alliance", "Taiwan"},
		{"EK", "Emirates", "FSC", "", "United Arab Emirates"},
		{"QR", "Qatar Airways", "FSC", "Oneworld", "Qatar"},
		{"TK", "Turkish Airlines", "FSC", "Star Alliance", "Turkey"},
		{"LH", "Lufthansa", "FSC", "Star Alliance", "Germany"},
		{"AF", "Air France", "FSC", "SkyTeam", "France"},
		{"KL", "KLM Royal Dutch Airlines", "FSC", "SkyTeam", "Netherlands"},
		{"LO", "LOT Polish Airlines", "FSC", "Star Alliance", "Poland"},
		{"NZ", "Air New Zealand", "FSC", "Star Alliance", "New Zealand"},
		{"ET", "Ethiopian Airlines", "FSC", "Star Alliance", "Ethiopia"},
	}

	stmt, err := p.db.Prepare(`
		INSERT INTO airlines (id, code, name, type, alliance, country)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range airlines {
		alliance := any(a[3])
		if a[3] == "" {
			alliance = nil
		}
		if _, err := stmt.Exec(uuid.New(), a[0], a[1], a[2], alliance, a[4]); err != nil {
			return fmt.Errorf("insert airline %s: %w", a[0], err)
		}
	}
	return nil
}

// seedSeatSpecs loads published economy and business seat dimensions
// for the comfort subscore.
func (p *PostgresDB) seedSeatSpecs() error {
	specs := []struct {
		airline string
		cabin   string
		pitch   float64
		width   float64
	}{
		{"KE", "ECONOMY", 33, 17.2},
		{"KE", "BUSINESS", 75, 21.0},
		{"OZ", "ECONOMY", 32, 17.4},
		{"LJ", "ECONOMY", 31, 17.0},
		{"7C", "ECONOMY", 29, 17.0},
		{"TW", "ECONOMY", 30, 17.0},
		{"BX", "ECONOMY", 31, 17.0},
		{"RS", "ECONOMY", 32, 17.0},
		{"ZE", "ECONOMY", 29, 17.0},
		{"YP", "ECONOMY", 35, 17.3},
		{"NH", "ECONOMY", 34, 17.3},
		{"JL", "ECONOMY", 33, 17.7},
		{"SQ", "ECONOMY", 32, 17.5},
		{"CX", "ECONOMY", 32, 17.2},
		{"TG", "ECONOMY", 32, 17.5},
		{"EK", "ECONOMY", 32, 17.5},
		{"QR", "ECONOMY", 31, 17.2},
		{"TK", "ECONOMY", 31, 17.3},
		{"LH", "ECONOMY", 31, 17.3},
		{"AF", "ECONOMY", 31, 17.0},
		{"KL", "ECONOMY", 31, 17.3},
	}

	stmt, err := p.db.Prepare(`
		INSERT INTO seat_specs (airline_code, cabin_class, seat_pitch_inches, seat_width_inches)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (airline_code, cabin_class) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range specs {
		if _, err := stmt.Exec(s.airline, s.cabin, s.pitch, s.width); err != nil {
			return fmt.Errorf("insert seat spec %s_%s: %w", s.airline, s.cabin, err)
		}
	}
	return nil
}
