package google

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/browserutils/kooky"
	"google.golang.org/protobuf/encoding/protowire"
)

// The consent interstitial is skipped by presenting a PENDING consent
// cookie next to a synthesized SOCS cookie. SOCS is a small protobuf:
// a version, an information record naming the deciding frontend and
// locale, and the decision timestamp.
const (
	fieldSOCSVersion = 1
	fieldSOCSInfo    = 2
	fieldSOCSTime    = 3

	fieldConsentVersion = 1
	fieldConsentGWS     = 2
	fieldConsentLocale  = 3
	fieldConsentFlag    = 4

	fieldTimeUnix = 1
)

func socsValue(locale string, now time.Time) string {
	var info []byte
	info = protowire.AppendTag(info, fieldConsentVersion, protowire.VarintType)
	info = protowire.AppendVarint(info, 1)
	info = protowire.AppendTag(info, fieldConsentGWS, protowire.BytesType)
	info = protowire.AppendString(info, fmt.Sprintf("gws_%s-0_RC2", now.Format("20060102")))
	info = protowire.AppendTag(info, fieldConsentLocale, protowire.BytesType)
	info = protowire.AppendString(info, locale)
	info = protowire.AppendTag(info, fieldConsentFlag, protowire.VarintType)
	info = protowire.AppendVarint(info, 1)

	var ts []byte
	ts = protowire.AppendTag(ts, fieldTimeUnix, protowire.VarintType)
	ts = protowire.AppendVarint(ts, uint64(now.Unix()))

	var socs []byte
	socs = protowire.AppendTag(socs, fieldSOCSVersion, protowire.VarintType)
	socs = protowire.AppendVarint(socs, 1)
	socs = protowire.AppendTag(socs, fieldSOCSInfo, protowire.BytesType)
	socs = protowire.AppendBytes(socs, info)
	socs = protowire.AppendTag(socs, fieldSOCSTime, protowire.BytesType)
	socs = protowire.AppendBytes(socs, ts)

	return base64.RawURLEncoding.EncodeToString(socs)
}

func consentCookies(locale string, now time.Time) map[string]string {
	return map[string]string{
		"CONSENT": "PENDING+987",
		"SOCS":    socsValue(locale, now),
	}
}

// abuseExemption looks for a GOOGLE_ABUSE_EXEMPTION cookie in a local
// browser profile. Google issues it after a solved captcha and honors
// it regardless of which client presents it.
func abuseExemption() (string, bool) {
	found := kooky.ReadCookies(kooky.Valid,
		kooky.DomainHasSuffix(`google.com`), kooky.Name(`GOOGLE_ABUSE_EXEMPTION`))
	for _, c := range found {
		if c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}
