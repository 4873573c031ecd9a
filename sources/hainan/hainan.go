// Package hainan crawls the Hainan Airlines mobile fare-trends API.
// Every request is signed with an HMAC-SHA1 over the merged request
// envelope using constants lifted from the m.hnair.com web bundle. The
// calendar covers domestic Chinese routes only; international pairs
// come back empty.
package hainan

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/retry"
	"github.com/skyfare/skyfare/transport"
)

const Name = "hainan_airlines"

const (
	baseURL        = "https://app.hnair.com"
	fareTrendsPath = "/ticket/faretrend/airFareTrends"

	// Signing constants from the mobile web bundle.
	certificateHash = "6093941774D84495A5D15D8F909CAA1E"
	hardCode        = "21047C596EAD45209346AE29F0350491"
	appKey          = "9E4BBDDEC6C8416EA380E418161A7CD3"

	appVersion = "10.11.0"
)

// cabinCodes maps to Hainan cabin letters; the API has no separate
// premium-economy cabin.
var cabinCodes = map[core.CabinClass]string{
	core.Economy:        "Y",
	core.PremiumEconomy: "Y",
	core.Business:       "C",
	core.First:          "F",
}

type Crawler struct {
	http     *transport.Direct
	base     string
	deviceID string
}

func New(cfg config.CrawlerConfig) (crawler.Crawler, error) {
	direct, err := transport.NewDirect(transport.DirectOptions{
		Timeout: cfg.L1Timeout,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Origin":       "https://m.hnair.com",
			"Referer":      "https://m.hnair.com/",
			"appver":       appVersion,
		},
	})
	if err != nil {
		return nil, err
	}
	deviceID := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return &Crawler{http: direct, base: baseURL, deviceID: deviceID}, nil
}

func (c *Crawler) Name() string { return Name }

func (c *Crawler) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	req := task.Request

	envelope, err := retry.DoValue(ctx, retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   15 * time.Second,
		RetryIf:    transport.Retryable,
	}, func() (*fareTrendsResponse, error) {
		return c.fetchFareTrends(ctx, req.Origin, req.Destination,
			req.DepartureDate.Format("2006-01-02"), cabinCodes[req.CabinClass])
	})
	if err != nil {
		return core.FailedCrawlResult(core.SourceDirectCrawl, err, time.Since(start))
	}

	flights := parseFareTrends(envelope, req.Origin, req.Destination, req.CabinClass)
	return core.NewCrawlResult(core.SourceDirectCrawl, flights, time.Since(start))
}

func (c *Crawler) fetchFareTrends(ctx context.Context, origin, destination, date, cabin string) (*fareTrendsResponse, error) {
	if cabin == "" {
		cabin = "Y"
	}
	common := c.commonEnvelope()
	data := map[string]any{
		"orgCode":   origin,
		"dstCode":   destination,
		"depDate":   date,
		"cabin":     cabin,
		"isOrgCity": "true",
		"isDstCity": "true",
		"_referer":  "",
	}

	merged := make(map[string]any, len(common)+len(data))
	for k, v := range common {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}

	url := fmt.Sprintf("%s%s?hnairSign=%s", c.base, fareTrendsPath, sign(merged))
	body := map[string]any{"common": common, "data": data}

	var envelope fareTrendsResponse
	if err := c.http.PostJSON(ctx, url, body, nil, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, transport.Upstream("hainan_airlines fare trends: %s", envelope.Message)
	}
	return &envelope, nil
}

// commonEnvelope builds the header block the mobile SPA sends with
// every call.
func (c *Crawler) commonEnvelope() map[string]any {
	return map[string]any{
		"sname":         "MacIntel",
		"sver":          "5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		"schannel":      "HTML5",
		"caller":        "HTML5",
		"slang":         "zh-CN",
		"did":           c.deviceID,
		"stime":         time.Now().UnixMilli(),
		"szone":         -480,
		"aname":         "com.hnair.spa.web.standard",
		"aver":          appVersion,
		"akey":          appKey,
		"abuild":        "1",
		"atarget":       "standard",
		"slat":          "slat",
		"slng":          "slng",
		"gtcid":         "defualt_web_gtcid",
		"riskToken":     "",
		"captchaToken":  "",
		"blackBox":      "",
		"validateToken": "",
	}
}

// sign concatenates the stringified primitive values in key order,
// appends the certificate hash, and HMAC-SHA1s the buffer with the
// hard-coded key. The digest travels as the hnairSign query parameter
// in uppercase hex.
func sign(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for _, k := range keys {
		switch v := params[k].(type) {
		case string:
			buf.WriteString(v)
		case bool:
			buf.WriteString(strconv.FormatBool(v))
		case int:
			buf.WriteString(strconv.Itoa(v))
		case int64:
			buf.WriteString(strconv.FormatInt(v, 10))
		case float64:
			buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	buf.WriteString(certificateHash)

	mac := hmac.New(sha1.New, []byte(hardCode))
	mac.Write([]byte(buf.String()))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// HealthCheck probes the PEK-HAK trunk route.
func (c *Crawler) HealthCheck(ctx context.Context) bool {
	date := time.Now().AddDate(0, 0, 30).Format("2006-01-02")
	envelope, err := c.fetchFareTrends(ctx, "PEK", "HAK", date, "Y")
	return err == nil && envelope.Success
}

func (c *Crawler) Close() error { return c.http.Close() }
