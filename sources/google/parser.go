package google

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/pkg/logger"
)

// Decode paths into the nested arrays the results page embeds. The
// page ships its data as positional lists inside a script tagged
// ds:1; indices below were mapped out against live responses.
var dataPattern = regexp.MustCompile(`(?s)data:(\[.*\])`)

// parsePage decodes the itinerary data embedded in a results page.
// When the script payload is missing (degraded or partially rendered
// page) it falls back to scraping the visible result rows, which
// yields price and duration but no per-segment detail.
func parsePage(page []byte, cabin core.CabinClass) []core.NormalizedFlight {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		logger.Warn("unparseable results page", "source", Name, "error", err)
		return nil
	}
	if flights := parseScriptData(doc, cabin); len(flights) > 0 {
		return flights
	}
	logger.Info("embedded data missing, scraping result rows", "source", Name)
	return parseResultRows(doc, cabin)
}

func parseScriptData(doc *html.Node, cabin core.CabinClass) []core.NormalizedFlight {
	script := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "script" && attrValue(n, "class") == "ds:1"
	})
	if script == nil {
		return nil
	}

	match := dataPattern.FindStringSubmatch(textContent(script))
	if match == nil {
		logger.Warn("ds:1 script without data payload", "source", Name)
		return nil
	}

	var root any
	if err := json.Unmarshal([]byte(match[1]), &root); err != nil {
		logger.Warn("embedded data is not valid json", "source", Name, "error", err)
		return nil
	}

	now := time.Now().UTC()
	var flights []core.NormalizedFlight
	for _, groupPath := range [][]int{{2, 0}, {3, 0}} {
		group, _ := at(root, groupPath...).([]any)
		for _, itin := range group {
			flights = append(flights, parseItinerary(itin, cabin, now)...)
		}
	}
	return flights
}

// parseItinerary emits one flight per segment; the itinerary price is
// attached to every segment since the page quotes it per itinerary.
func parseItinerary(itin any, cabin core.CabinClass, now time.Time) []core.NormalizedFlight {
	segments, _ := at(itin, 0, 2).([]any)
	if len(segments) == 0 {
		return nil
	}

	var amount float64
	currency := "USD"
	if b64 := stringAt(itin, 1, 1); b64 != "" {
		sum, err := decodeItinerarySummary(b64)
		if err != nil {
			logger.Warn("undecodable itinerary summary", "source", Name, "error", err)
		} else {
			amount = sum.Amount
			if sum.Currency != "" {
				currency = sum.Currency
			}
		}
	}

	stops := len(segments) - 1
	var flights []core.NormalizedFlight
	for _, seg := range segments {
		airline := stringAt(seg, 22, 0)
		number := stringAt(seg, 22, 1)
		if airline == "" || number == "" {
			continue
		}

		var prices []core.NormalizedPrice
		if amount > 0 {
			prices = append(prices, core.NormalizedPrice{
				Amount:    amount,
				Currency:  currency,
				Source:    core.SourceGoogleProtobuf,
				CrawledAt: now,
			})
		}

		flights = append(flights, core.NormalizedFlight{
			FlightNumber:    airline + number,
			AirlineCode:     airline,
			AirlineName:     stringAt(seg, 22, 3),
			Operator:        stringAt(seg, 2),
			Origin:          stringAt(seg, 3),
			Destination:     stringAt(seg, 5),
			DepartureTime:   timeFromParts(at(seg, 20), at(seg, 8)),
			ArrivalTime:     timeFromParts(at(seg, 21), at(seg, 10)),
			DurationMinutes: intAt(seg, 11),
			CabinClass:      cabin,
			AircraftType:    stringAt(seg, 17),
			Stops:           stops,
			Prices:          prices,
			Source:          core.SourceGoogleProtobuf,
			CrawledAt:       now,
		})
	}
	return flights
}

// at walks a decode path through nested arrays, returning nil when the
// path runs off the data.
func at(node any, path ...int) any {
	for _, i := range path {
		list, ok := node.([]any)
		if !ok || i >= len(list) {
			return nil
		}
		node = list[i]
	}
	return node
}

func stringAt(node any, path ...int) string {
	s, _ := at(node, path...).(string)
	return s
}

func intAt(node any, path ...int) int {
	f, _ := at(node, path...).(float64)
	return int(f)
}

func intSlice(v any) []int {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, len(list))
	for i, e := range list {
		if f, ok := e.(float64); ok {
			out[i] = int(f)
		}
	}
	return out
}

// timeFromParts combines a [year, month, day] and an [hour, minute]
// array. The minute entry is omitted on the hour.
func timeFromParts(date, clock any) time.Time {
	d := intSlice(date)
	if len(d) < 3 {
		return time.Time{}
	}
	var hour, minute int
	if hm := intSlice(clock); len(hm) > 0 {
		hour = hm[0]
		if len(hm) > 1 {
			minute = hm[1]
		}
	}
	return time.Date(d[0], time.Month(d[1]), d[2], hour, minute, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// Rendered-row fallback
// ---------------------------------------------------------------------------

var (
	hoursPattern = regexp.MustCompile(`(\d+)\s*hr`)
	minsPattern  = regexp.MustCompile(`(\d+)\s*min`)
	nonNumeric   = regexp.MustCompile(`[^\d.]`)
)

// parseResultRows scrapes the rendered itinerary list. Rows carry no
// airports or times, only airline, duration, stops and price, so the
// emitted flights are coarse.
func parseResultRows(doc *html.Node, cabin core.CabinClass) []core.NormalizedFlight {
	now := time.Now().UTC()
	var flights []core.NormalizedFlight

	sections := findAll(doc, func(n *html.Node) bool {
		jsname := attrValue(n, "jsname")
		return n.Type == html.ElementNode && n.Data == "div" &&
			(jsname == "IWWDBc" || jsname == "YdtKid")
	})

	for i, section := range sections {
		list := findFirst(section, elemWithClasses("ul", "Rk10dc"))
		if list == nil {
			continue
		}
		items := findAll(list, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "li"
		})
		// Trailing row of non-best sections is a promo.
		if i != 0 && len(items) > 1 {
			items = items[:len(items)-1]
		}

		for _, item := range items {
			name := rowText(item, elemWithClasses("div", "sSHqwe", "tPgKwe", "ogfYpf"))
			if name == "" {
				continue
			}

			duration := parseRowDuration(rowText(item, elemWithClasses("div", "Ak5kof")))

			var stopsRaw string
			if box := findFirst(item, func(n *html.Node) bool {
				return n.Type == html.ElementNode && hasClasses(n, "BbR8Ec")
			}); box != nil {
				stopsRaw = rowText(box, func(n *html.Node) bool {
					return n.Type == html.ElementNode && hasClasses(n, "ogfYpf")
				})
			}
			stops := parseRowStops(stopsRaw)
			amount := parseRowPrice(rowText(item, func(n *html.Node) bool {
				return n.Type == html.ElementNode && hasClasses(n, "YMlIz", "FpEdX")
			}))

			var prices []core.NormalizedPrice
			if amount > 0 {
				prices = append(prices, core.NormalizedPrice{
					Amount:    amount,
					Currency:  "USD",
					Source:    core.SourceGoogleProtobuf,
					CrawledAt: now,
				})
			}

			code := name
			if len(code) > 2 {
				code = code[:2]
			}
			flights = append(flights, core.NormalizedFlight{
				FlightNumber:    name,
				AirlineCode:     code,
				AirlineName:     name,
				DepartureTime:   now,
				ArrivalTime:     now,
				DurationMinutes: duration,
				CabinClass:      cabin,
				Stops:           stops,
				Prices:          prices,
				Source:          core.SourceGoogleProtobuf,
				CrawledAt:       now,
			})
		}
	}
	return flights
}

func parseRowDuration(raw string) int {
	minutes := 0
	if m := hoursPattern.FindStringSubmatch(raw); m != nil {
		h, _ := strconv.Atoi(m[1])
		minutes += h * 60
	}
	if m := minsPattern.FindStringSubmatch(raw); m != nil {
		v, _ := strconv.Atoi(m[1])
		minutes += v
	}
	return minutes
}

func parseRowStops(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "Nonstop") {
		return 0
	}
	n, err := strconv.Atoi(strings.Fields(raw)[0])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseRowPrice(raw string) float64 {
	cleaned := nonNumeric.ReplaceAllString(strings.ReplaceAll(raw, ",", ""), "")
	if cleaned == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return amount
}

// ---------------------------------------------------------------------------
// DOM helpers
// ---------------------------------------------------------------------------

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClasses(n *html.Node, classes ...string) bool {
	have := strings.Fields(attrValue(n, "class"))
	for _, want := range classes {
		found := false
		for _, c := range have {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func elemWithClasses(tag string, classes ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag && hasClasses(n, classes...)
	}
}

func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	if pred(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	if pred(root) {
		out = append(out, root)
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, findAll(c, pred)...)
	}
	return out
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

func rowText(item *html.Node, pred func(*html.Node) bool) string {
	node := findFirst(item, pred)
	if node == nil {
		return ""
	}
	return strings.TrimSpace(textContent(node))
}
