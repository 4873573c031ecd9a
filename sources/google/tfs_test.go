package google

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/skyfare/skyfare/core"
)

type wireField struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

func wireFields(t *testing.T, raw []byte) []wireField {
	t.Helper()
	var out []wireField
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		require.GreaterOrEqual(t, n, 0)
		raw = raw[n:]

		f := wireField{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(raw)
			require.GreaterOrEqual(t, m, 0)
			f.varint = v
			raw = raw[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(raw)
			require.GreaterOrEqual(t, m, 0)
			f.bytes = append([]byte(nil), v...)
			raw = raw[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, raw)
			require.GreaterOrEqual(t, m, 0)
			raw = raw[m:]
		}
		out = append(out, f)
	}
	return out
}

func fieldString(t *testing.T, fields []wireField, num protowire.Number) string {
	t.Helper()
	for _, f := range fields {
		if f.num == num && f.typ == protowire.BytesType {
			return string(f.bytes)
		}
	}
	return ""
}

func legAirport(t *testing.T, fields []wireField, num protowire.Number) string {
	t.Helper()
	for _, f := range fields {
		if f.num == num && f.typ == protowire.BytesType {
			return fieldString(t, wireFields(t, f.bytes), fieldAirportCode)
		}
	}
	return ""
}

func TestBuildTFSRoundTrip(t *testing.T) {
	returnDate := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	raw, err := base64.RawURLEncoding.DecodeString(buildTFS(core.SearchRequest{
		Origin:        "ICN",
		Destination:   "JFK",
		DepartureDate: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		ReturnDate:    &returnDate,
		TripType:      core.RoundTrip,
		CabinClass:    core.Business,
		Passengers:    core.PassengerMix{Adults: 2, Children: 1},
	}))
	require.NoError(t, err)

	var (
		legs       [][]wireField
		passengers []uint64
		seat, trip uint64
	)
	for _, f := range wireFields(t, raw) {
		switch f.num {
		case fieldInfoData:
			legs = append(legs, wireFields(t, f.bytes))
		case fieldInfoPassengers:
			passengers = append(passengers, f.varint)
		case fieldInfoSeat:
			seat = f.varint
		case fieldInfoTrip:
			trip = f.varint
		}
	}

	require.Len(t, legs, 2)
	assert.Equal(t, "2026-05-10", fieldString(t, legs[0], fieldLegDate))
	assert.Equal(t, "ICN", legAirport(t, legs[0], fieldLegFrom))
	assert.Equal(t, "JFK", legAirport(t, legs[0], fieldLegTo))
	assert.Equal(t, "2026-05-20", fieldString(t, legs[1], fieldLegDate))
	assert.Equal(t, "JFK", legAirport(t, legs[1], fieldLegFrom))
	assert.Equal(t, "ICN", legAirport(t, legs[1], fieldLegTo))

	assert.Equal(t, []uint64{paxAdult, paxAdult, paxChild}, passengers)
	assert.Equal(t, uint64(seatBusiness), seat)
	assert.Equal(t, uint64(tripRoundTrip), trip)
}

func TestBuildTFSOneWayDefaults(t *testing.T) {
	raw, err := base64.RawURLEncoding.DecodeString(buildTFS(core.SearchRequest{
		Origin:        "ICN",
		Destination:   "NRT",
		DepartureDate: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		TripType:      core.OneWay,
	}))
	require.NoError(t, err)

	var (
		legCount   int
		passengers []uint64
		seat, trip uint64
	)
	for _, f := range wireFields(t, raw) {
		switch f.num {
		case fieldInfoData:
			legCount++
		case fieldInfoPassengers:
			passengers = append(passengers, f.varint)
		case fieldInfoSeat:
			seat = f.varint
		case fieldInfoTrip:
			trip = f.varint
		}
	}

	assert.Equal(t, 1, legCount)
	assert.Equal(t, []uint64{paxAdult}, passengers, "an empty mix travels as one adult")
	assert.Equal(t, uint64(seatEconomy), seat)
	assert.Equal(t, uint64(tripOneWay), trip)
}

func summaryB64(t *testing.T, flights, currency string, cents uint64) string {
	t.Helper()
	var price []byte
	price = protowire.AppendTag(price, fieldPriceCurrency, protowire.BytesType)
	price = protowire.AppendString(price, currency)
	price = protowire.AppendTag(price, fieldPriceUnits, protowire.VarintType)
	price = protowire.AppendVarint(price, cents)

	var b []byte
	// Unknown leading field exercises the skip path.
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	b = protowire.AppendTag(b, fieldSummaryFlights, protowire.BytesType)
	b = protowire.AppendString(b, flights)
	b = protowire.AppendTag(b, fieldSummaryPrice, protowire.BytesType)
	b = protowire.AppendBytes(b, price)

	return base64.StdEncoding.EncodeToString(b)
}

func TestDecodeItinerarySummary(t *testing.T) {
	sum, err := decodeItinerarySummary(summaryB64(t, "KE85", "KRW", 125050))
	require.NoError(t, err)
	assert.Equal(t, "KE85", sum.Flights)
	assert.InEpsilon(t, 1250.50, sum.Amount, 1e-9, "price arrives in minor units")
	assert.Equal(t, "KRW", sum.Currency)
}

func TestDecodeItinerarySummaryBadInput(t *testing.T) {
	_, err := decodeItinerarySummary("not base64!!!")
	assert.Error(t, err)
}

func TestConsentCookies(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	cookies := consentCookies("en", now)
	assert.Equal(t, "PENDING+987", cookies["CONSENT"])

	raw, err := base64.RawURLEncoding.DecodeString(cookies["SOCS"])
	require.NoError(t, err)

	var gws, locale string
	var stamp uint64
	for _, f := range wireFields(t, raw) {
		switch f.num {
		case fieldSOCSInfo:
			inner := wireFields(t, f.bytes)
			gws = fieldString(t, inner, fieldConsentGWS)
			locale = fieldString(t, inner, fieldConsentLocale)
		case fieldSOCSTime:
			for _, tf := range wireFields(t, f.bytes) {
				if tf.num == fieldTimeUnix {
					stamp = tf.varint
				}
			}
		}
	}
	assert.Equal(t, "gws_20260824-0_RC2", gws)
	assert.Equal(t, "en", locale)
	assert.Equal(t, uint64(now.Unix()), stamp)
}
