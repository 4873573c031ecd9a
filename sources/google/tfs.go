package google

import (
	"encoding/base64"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/transport"
)

// The ?tfs= query parameter is a protobuf message reverse-engineered
// from the requests the site builds for itself. Field numbers and enum
// values below mirror that wire format; there is no published schema.
const (
	fieldInfoData       = 3
	fieldInfoPassengers = 8
	fieldInfoSeat       = 9
	fieldInfoTrip       = 19

	fieldLegDate     = 2
	fieldLegMaxStops = 5
	fieldLegFrom     = 13
	fieldLegTo       = 14

	fieldAirportCode = 2
)

const (
	seatEconomy        = 1
	seatPremiumEconomy = 2
	seatBusiness       = 3
	seatFirst          = 4

	tripRoundTrip = 1
	tripOneWay    = 2

	paxAdult        = 1
	paxChild        = 2
	paxInfantInSeat = 3
	paxInfantOnLap  = 4
)

var seatForCabin = map[core.CabinClass]uint64{
	core.Economy:        seatEconomy,
	core.PremiumEconomy: seatPremiumEconomy,
	core.Business:       seatBusiness,
	core.First:          seatFirst,
}

// tfsLeg is one origin->destination leg of the query. maxStops below
// zero leaves the field unset.
type tfsLeg struct {
	date     string
	from     string
	to       string
	maxStops int
}

func appendAirport(code string) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldAirportCode, protowire.BytesType)
	return protowire.AppendString(b, code)
}

func appendLeg(b []byte, leg tfsLeg) []byte {
	var l []byte
	l = protowire.AppendTag(l, fieldLegDate, protowire.BytesType)
	l = protowire.AppendString(l, leg.date)
	if leg.maxStops >= 0 {
		l = protowire.AppendTag(l, fieldLegMaxStops, protowire.VarintType)
		l = protowire.AppendVarint(l, uint64(leg.maxStops))
	}
	l = protowire.AppendTag(l, fieldLegFrom, protowire.BytesType)
	l = protowire.AppendBytes(l, appendAirport(leg.from))
	l = protowire.AppendTag(l, fieldLegTo, protowire.BytesType)
	l = protowire.AppendBytes(l, appendAirport(leg.to))

	b = protowire.AppendTag(b, fieldInfoData, protowire.BytesType)
	return protowire.AppendBytes(b, l)
}

func appendPassengers(b []byte, mix core.PassengerMix) []byte {
	adults := mix.Adults
	if adults == 0 {
		adults = 1
	}
	counts := []struct {
		n    int
		kind uint64
	}{
		{adults, paxAdult},
		{mix.Children, paxChild},
		{mix.InfantsSeat, paxInfantInSeat},
		{mix.InfantsLap, paxInfantOnLap},
	}
	for _, c := range counts {
		for i := 0; i < c.n; i++ {
			b = protowire.AppendTag(b, fieldInfoPassengers, protowire.VarintType)
			b = protowire.AppendVarint(b, c.kind)
		}
	}
	return b
}

// buildTFS serializes the search into the base64 tfs parameter. Fields
// are written in ascending number order, matching canonical protobuf
// output.
func buildTFS(req core.SearchRequest) string {
	legs := []tfsLeg{{
		date:     req.DepartureDate.Format(time.DateOnly),
		from:     req.Origin,
		to:       req.Destination,
		maxStops: -1,
	}}
	trip := uint64(tripOneWay)
	if req.TripType == core.RoundTrip && req.ReturnDate != nil {
		trip = tripRoundTrip
		legs = append(legs, tfsLeg{
			date:     req.ReturnDate.Format(time.DateOnly),
			from:     req.Destination,
			to:       req.Origin,
			maxStops: -1,
		})
	}

	var b []byte
	for _, leg := range legs {
		b = appendLeg(b, leg)
	}
	b = appendPassengers(b, req.Passengers)

	seat, ok := seatForCabin[req.CabinClass]
	if !ok {
		seat = seatEconomy
	}
	b = protowire.AppendTag(b, fieldInfoSeat, protowire.VarintType)
	b = protowire.AppendVarint(b, seat)
	b = protowire.AppendTag(b, fieldInfoTrip, protowire.VarintType)
	b = protowire.AppendVarint(b, trip)

	return base64.RawURLEncoding.EncodeToString(b)
}

// itinerarySummary is the compact record embedded beside each result
// row, carrying the total price in minor units.
type itinerarySummary struct {
	Flights  string
	Amount   float64
	Currency string
}

const (
	fieldSummaryFlights = 2
	fieldSummaryPrice   = 3

	fieldPriceCurrency = 1
	fieldPriceUnits    = 2
)

func decodeItinerarySummary(b64 string) (itinerarySummary, error) {
	var sum itinerarySummary

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(b64)
	}
	if err != nil {
		return sum, transport.BadShape("itinerary summary base64: %v", err)
	}

	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return sum, transport.BadShape("itinerary summary tag: %v", protowire.ParseError(n))
		}
		raw = raw[n:]

		switch {
		case num == fieldSummaryFlights && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(raw)
			if m < 0 {
				return sum, transport.BadShape("itinerary summary flights: %v", protowire.ParseError(m))
			}
			sum.Flights = v
			raw = raw[m:]
		case num == fieldSummaryPrice && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(raw)
			if m < 0 {
				return sum, transport.BadShape("itinerary summary price: %v", protowire.ParseError(m))
			}
			if err := decodeSummaryPrice(v, &sum); err != nil {
				return sum, err
			}
			raw = raw[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, raw)
			if m < 0 {
				return sum, transport.BadShape("itinerary summary field %d: %v", num, protowire.ParseError(m))
			}
			raw = raw[m:]
		}
	}
	return sum, nil
}

func decodeSummaryPrice(raw []byte, sum *itinerarySummary) error {
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return transport.BadShape("price tag: %v", protowire.ParseError(n))
		}
		raw = raw[n:]

		switch {
		case num == fieldPriceCurrency && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(raw)
			if m < 0 {
				return transport.BadShape("price currency: %v", protowire.ParseError(m))
			}
			sum.Currency = v
			raw = raw[m:]
		case num == fieldPriceUnits && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return transport.BadShape("price units: %v", protowire.ParseError(m))
			}
			// Units arrive in cents.
			sum.Amount = float64(v) / 100
			raw = raw[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, raw)
			if m < 0 {
				return transport.BadShape("price field %d: %v", num, protowire.ParseError(m))
			}
			raw = raw[m:]
		}
	}
	return nil
}
