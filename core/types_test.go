package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassengerMixValidate(t *testing.T) {
	tests := []struct {
		name    string
		mix     PassengerMix
		wantErr bool
	}{
		{"single adult", PassengerMix{Adults: 1}, false},
		{"family of four", PassengerMix{Adults: 2, Children: 2}, false},
		{"nine passengers", PassengerMix{Adults: 4, Children: 5}, false},
		{"no adults", PassengerMix{Children: 2}, true},
		{"ten passengers", PassengerMix{Adults: 5, Children: 5}, true},
		{"more lap infants than adults", PassengerMix{Adults: 1, InfantsLap: 2}, true},
		{"negative children", PassengerMix{Adults: 1, Children: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mix.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSearchRequestValidate(t *testing.T) {
	dep := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	base := NewSearchRequest("ICN", "NRT", dep)
	require.NoError(t, base.Validate())

	t.Run("lowercase input is uppercased by constructor", func(t *testing.T) {
		r := NewSearchRequest("icn", "nrt", dep)
		assert.Equal(t, "ICN", r.Origin)
		assert.NoError(t, r.Validate())
	})

	t.Run("same origin and destination", func(t *testing.T) {
		r := base
		r.Destination = "ICN"
		assert.Error(t, r.Validate())
	})

	t.Run("bad airport code", func(t *testing.T) {
		for _, code := range []string{"IC", "ICNX", "ic1", ""} {
			r := base
			r.Origin = code
			assert.Error(t, r.Validate(), "code %q should be rejected", code)
		}
	})

	t.Run("return before departure", func(t *testing.T) {
		r := base
		ret := dep.AddDate(0, 0, -1)
		r.ReturnDate = &ret
		assert.Error(t, r.Validate())
	})

	t.Run("round trip requires return date", func(t *testing.T) {
		r := base
		r.TripType = RoundTrip
		assert.Error(t, r.Validate())

		ret := dep.AddDate(0, 0, 7)
		r.ReturnDate = &ret
		assert.NoError(t, r.Validate())
	})

	t.Run("bad currency", func(t *testing.T) {
		r := base
		r.Currency = "WON"
		assert.NoError(t, r.Validate())
		r.Currency = "W"
		assert.Error(t, r.Validate())
	})
}

func TestDedupKey(t *testing.T) {
	dep := time.Date(2026, 9, 15, 8, 30, 45, 123456, time.UTC)
	f := NormalizedFlight{
		FlightNumber:  "KE123",
		Origin:        "ICN",
		Destination:   "NRT",
		DepartureTime: dep,
	}
	assert.Equal(t, "KE123|ICN|NRT|2026-09-15T08:30Z", f.DedupKey())

	t.Run("seconds are ignored", func(t *testing.T) {
		g := f
		g.DepartureTime = time.Date(2026, 9, 15, 8, 30, 0, 0, time.UTC)
		assert.Equal(t, f.DedupKey(), g.DedupKey())
	})

	t.Run("zone-shifted same instant matches", func(t *testing.T) {
		kst := time.FixedZone("KST", 9*3600)
		g := f
		g.DepartureTime = dep.In(kst)
		assert.Equal(t, f.DedupKey(), g.DedupKey())
	})

	t.Run("different minute differs", func(t *testing.T) {
		g := f
		g.DepartureTime = dep.Add(time.Minute)
		assert.NotEqual(t, f.DedupKey(), g.DedupKey())
	})
}

func TestLowestPrice(t *testing.T) {
	f := NormalizedFlight{FlightNumber: "KE123"}
	_, ok := f.LowestPrice()
	assert.False(t, ok)

	f.Prices = []NormalizedPrice{
		{Amount: 350000, Currency: "KRW"},
		{Amount: 280000, Currency: "KRW"},
		{Amount: 420000, Currency: "KRW"},
	}
	low, ok := f.LowestPrice()
	require.True(t, ok)
	assert.Equal(t, 280000.0, low)
}

func TestNormalizedFlightValidate(t *testing.T) {
	dep := time.Date(2026, 9, 15, 8, 30, 0, 0, time.UTC)
	valid := NormalizedFlight{
		FlightNumber:    "KE123",
		AirlineCode:     "KE",
		Origin:          "ICN",
		Destination:     "NRT",
		DepartureTime:   dep,
		ArrivalTime:     dep.Add(2 * time.Hour),
		DurationMinutes: 120,
		CabinClass:      Economy,
		Source:          SourceKiwiAPI,
		Prices:          []NormalizedPrice{{Amount: 280000, Currency: "KRW", Source: SourceKiwiAPI}},
	}
	assert.NoError(t, valid.Validate())

	t.Run("zero price rejected", func(t *testing.T) {
		f := valid.Clone()
		f.Prices[0].Amount = 0
		assert.Error(t, f.Validate())
	})

	t.Run("missing flight number", func(t *testing.T) {
		f := valid.Clone()
		f.FlightNumber = ""
		assert.Error(t, f.Validate())
	})

	t.Run("negative duration", func(t *testing.T) {
		f := valid.Clone()
		f.DurationMinutes = -1
		assert.Error(t, f.Validate())
	})

	t.Run("synthetic calendar row is valid", func(t *testing.T) {
		f := NormalizedFlight{
			FlightNumber:  SyntheticFlightNumber("TW", "ICN", "NRT"),
			AirlineCode:   "TW",
			Origin:        "ICN",
			Destination:   "NRT",
			DepartureTime: dep,
			ArrivalTime:   dep,
			Synthetic:     true,
			Source:        SourceDirectCrawl,
			Prices:        []NormalizedPrice{{Amount: 99000, Currency: "KRW", Source: SourceDirectCrawl}},
		}
		assert.Equal(t, "TW-ICNNRT", f.FlightNumber)
		assert.NoError(t, f.Validate())
	})
}

func TestCloneIsDeep(t *testing.T) {
	f := NormalizedFlight{
		FlightNumber:  "KE123",
		Prices:        []NormalizedPrice{{Amount: 100, Currency: "KRW"}},
		MergedSources: []DataSource{SourceKiwiAPI},
	}
	g := f.Clone()
	g.Prices[0].Amount = 200
	g.MergedSources[0] = SourceGDS
	assert.Equal(t, 100.0, f.Prices[0].Amount)
	assert.Equal(t, SourceKiwiAPI, f.MergedSources[0])
}

func TestTrustRank(t *testing.T) {
	assert.True(t, MoreTrusted(SourceGoogleProtobuf, SourceKiwiAPI))
	assert.True(t, MoreTrusted(SourceKiwiAPI, SourceDirectCrawl))
	assert.True(t, MoreTrusted(SourceDirectCrawl, SourceGDS))

	t.Run("unknown source ranks below everything", func(t *testing.T) {
		unknown := DataSource("SOMETHING_NEW")
		assert.True(t, MoreTrusted(SourceGDS, unknown))
		assert.False(t, MoreTrusted(unknown, SourceGDS))
	})
}

func TestCrawlResultEnvelopes(t *testing.T) {
	res := NewCrawlResult(SourceKiwiAPI, nil, 1500*time.Millisecond)
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, int64(1500), res.DurationMS)

	fail := FailedCrawlResult(SourceGDS, errors.New("upstream 500"), 200*time.Millisecond)
	assert.False(t, fail.Success)
	assert.Equal(t, "upstream 500", fail.Error)
	assert.Empty(t, fail.Flights)
}
