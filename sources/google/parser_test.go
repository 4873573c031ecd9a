package google

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/core"
)

// Segment arrays are positional: operator at 2, airports at 3/5,
// clock tuples at 8/10, minutes at 11, aircraft at 17, date tuples at
// 20/21, airline triple at 22.
const segICNtoNRT = `[null,null,"Korean Air","ICN","Incheon","NRT","Narita",null,[10,30],null,[12,55],145,null,null,"32 in",[],null,"Boeing 777",null,null,[2026,5,10],[2026,5,10],["KE","0001",null,"Korean Air"]]`

const segNRTtoJFK = `[null,null,"Korean Air","NRT","Narita","JFK","John F. Kennedy",null,[14,30],null,[14,45],750,null,null,"32 in",[],null,"Boeing 787",null,null,[2026,5,10],[2026,5,10],["KE","0081",null,"Korean Air"]]`

const segICNtoJFK = `[null,null,"Asiana","ICN","Incheon","JFK","John F. Kennedy",null,[9,15],null,[10],840,null,null,"31 in",[],null,"Airbus A350",null,null,[2026,5,10],[2026,5,10],["OZ","0222",null,"Asiana Airlines"]]`

func scriptDataPage(t *testing.T) []byte {
	t.Helper()
	data := fmt.Sprintf(`[null,null,
		[[
			[["KE",["Korean Air"],[%s,%s],"ICN",[2026,5,10],[10,30],"JFK",[2026,5,11],[3,45],895,null,null,null,[]],[null,%q]]
		]],
		[[
			[["OZ",["Asiana Airlines"],[%s],"ICN",[2026,5,10],[9,15],"JFK",[2026,5,10],[10,0],840,null,null,null,[]],[null,""]],
			[["XX",[],[],"",null,null,"",null,null,0,null,null,null,[]],[null,""]]
		]]
	]`, segICNtoNRT, segNRTtoJFK, summaryB64(t, "KE1,KE81", "USD", 125050), segICNtoJFK)

	page := fmt.Sprintf(`<html><body><script class="ds:1" nonce="x">AF_initDataCallback({key: 'ds:1', hash: '2', data:%s, sideChannel: {}});</script></body></html>`, data)
	return []byte(page)
}

func TestParsePageScriptData(t *testing.T) {
	flights := parsePage(scriptDataPage(t), core.Economy)
	require.Len(t, flights, 3, "segmentless itineraries drop")

	first := flights[0]
	assert.Equal(t, "KE0001", first.FlightNumber)
	assert.Equal(t, "KE", first.AirlineCode)
	assert.Equal(t, "Korean Air", first.AirlineName)
	assert.Equal(t, "ICN", first.Origin)
	assert.Equal(t, "NRT", first.Destination)
	assert.Equal(t, time.Date(2026, 5, 10, 10, 30, 0, 0, time.UTC), first.DepartureTime)
	assert.Equal(t, time.Date(2026, 5, 10, 12, 55, 0, 0, time.UTC), first.ArrivalTime)
	assert.Equal(t, 145, first.DurationMinutes)
	assert.Equal(t, "Boeing 777", first.AircraftType)
	assert.Equal(t, 1, first.Stops, "two segments make a one-stop itinerary")
	assert.Equal(t, core.SourceGoogleProtobuf, first.Source)

	require.Len(t, first.Prices, 1, "the itinerary price rides on every segment")
	assert.InEpsilon(t, 1250.50, first.Prices[0].Amount, 1e-9)
	assert.Equal(t, "USD", first.Prices[0].Currency)
	assert.Equal(t, "KE0081", flights[1].FlightNumber)
	require.Len(t, flights[1].Prices, 1)

	direct := flights[2]
	assert.Equal(t, "OZ0222", direct.FlightNumber)
	assert.Equal(t, 0, direct.Stops)
	assert.Equal(t, time.Date(2026, 5, 10, 9, 15, 0, 0, time.UTC), direct.DepartureTime)
	assert.Equal(t, time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC), direct.ArrivalTime,
		"a one-element clock tuple means on the hour")
	assert.Empty(t, direct.Prices, "itineraries without a summary stay priceless")
}

const renderedRowsPage = `<html><body>
<div jsname="IWWDBc">
  <ul class="Rk10dc">
    <li>
      <div class="sSHqwe tPgKwe ogfYpf"><span>Korean Air</span></div>
      <div class="Ak5kof"><div>14 hr 30 min</div></div>
      <div class="BbR8Ec"><div class="ogfYpf">1 stop</div></div>
      <div class="YMlIz FpEdX"><span>$1,250</span></div>
    </li>
    <li><div class="Ak5kof"><div>9 hr</div></div></li>
  </ul>
</div>
<div jsname="YdtKid">
  <ul class="Rk10dc">
    <li>
      <div class="sSHqwe tPgKwe ogfYpf"><span>Asiana Airlines</span></div>
      <div class="Ak5kof"><div>13 hr 55 min</div></div>
      <div class="BbR8Ec"><div class="ogfYpf">Nonstop</div></div>
      <div class="YMlIz FpEdX"><span>$1,480</span></div>
    </li>
    <li>
      <div class="sSHqwe tPgKwe ogfYpf"><span>Promoted fare</span></div>
    </li>
  </ul>
</div>
</body></html>`

func TestParsePageRenderedRows(t *testing.T) {
	flights := parsePage([]byte(renderedRowsPage), core.Economy)
	require.Len(t, flights, 2, "nameless rows and trailing promo rows drop")

	first := flights[0]
	assert.Equal(t, "Korean Air", first.AirlineName)
	assert.Equal(t, 870, first.DurationMinutes)
	assert.Equal(t, 1, first.Stops)
	require.Len(t, first.Prices, 1)
	assert.InEpsilon(t, 1250.0, first.Prices[0].Amount, 1e-9)

	second := flights[1]
	assert.Equal(t, "Asiana Airlines", second.AirlineName)
	assert.Equal(t, 835, second.DurationMinutes)
	assert.Equal(t, 0, second.Stops)
	assert.InEpsilon(t, 1480.0, second.Prices[0].Amount, 1e-9)
}

func TestParsePageEmpty(t *testing.T) {
	assert.Empty(t, parsePage([]byte("<html><body>nothing here</body></html>"), core.Economy))
}

func TestSearchParams(t *testing.T) {
	params := searchParams(core.SearchRequest{
		Origin:        "ICN",
		Destination:   "JFK",
		DepartureDate: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		TripType:      core.OneWay,
	})
	assert.NotEmpty(t, params.Get("tfs"))
	assert.Equal(t, "en", params.Get("hl"))
	assert.Equal(t, "USD", params.Get("curr"), "currency defaults when the request has none")
}
