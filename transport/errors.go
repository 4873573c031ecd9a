// Package transport implements the three HTTP strategies used by source
// adapters: a plain retrying client, a TLS-impersonating client for
// fingerprint-sensitive sites, and a headless-browser driver for sites
// that only render fares client-side. It also defines the shared error
// taxonomy the retry classifier works against.
package transport

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. Adapters and the retry classifier match on
// these with errors.Is.
var (
	// ErrTransport covers connect failures, TLS handshake failures
	// and read/write timeouts. Retryable.
	ErrTransport = errors.New("transport error")

	// ErrServer is an HTTP 5xx. Retryable.
	ErrServer = errors.New("server error")

	// ErrRateLimited is an HTTP 429. Retryable.
	ErrRateLimited = errors.New("rate limited")

	// ErrClient is an HTTP 4xx other than 401/403/429. Non-retryable.
	ErrClient = errors.New("client error")

	// ErrAntiBot is a 403 carrying a known bot-detection marker.
	// Retryable after a session reset.
	ErrAntiBot = errors.New("anti-bot challenge")

	// ErrAuthExpired is a 401 on a token-bearing request. The caller
	// refreshes its token and re-attempts once before counting a retry.
	ErrAuthExpired = errors.New("auth token expired")

	// ErrBadShape is a malformed or unexpectedly-shaped response body.
	// Non-retryable; a retry would fetch the same shape again.
	ErrBadShape = errors.New("unexpected response shape")

	// ErrUpstream is a structurally valid response that reports an
	// upstream failure in-band. Non-retryable.
	ErrUpstream = errors.New("upstream reported failure")
)

// antiBotMarkers are body substrings that identify a bot-detection
// interstitial behind an otherwise ordinary 403 or 200.
var antiBotMarkers = []string{
	"Just a moment",
	"cf-turnstile",
	"challenge-platform",
	"DS-30037",
	"Access Denied",
	"Pardon Our Interruption",
}

// HasAntiBotMarker reports whether the body looks like a bot-detection
// interstitial rather than a real payload.
func HasAntiBotMarker(body string) bool {
	for _, m := range antiBotMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}

// StatusError classifies an HTTP status code into the taxonomy,
// consulting the body for anti-bot markers on 403s. Returns nil for
// 2xx.
func StatusError(status int, body string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 429:
		return fmt.Errorf("%w: status 429", ErrRateLimited)
	case status == 401:
		return fmt.Errorf("%w: status 401", ErrAuthExpired)
	case status == 403:
		if HasAntiBotMarker(body) {
			return fmt.Errorf("%w: status 403", ErrAntiBot)
		}
		return fmt.Errorf("%w: status 403", ErrClient)
	case status >= 500:
		return fmt.Errorf("%w: status %d", ErrServer, status)
	case status >= 400:
		return fmt.Errorf("%w: status %d", ErrClient, status)
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrServer, status)
	}
}

// Retryable is the retry classifier for crawl operations. Transport
// faults, server errors, rate limits, anti-bot challenges and expired
// tokens retry; client errors, bad response shapes and in-band upstream
// failures do not.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrClient),
		errors.Is(err, ErrBadShape),
		errors.Is(err, ErrUpstream):
		return false
	case errors.Is(err, ErrTransport),
		errors.Is(err, ErrServer),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrAntiBot),
		errors.Is(err, ErrAuthExpired):
		return true
	default:
		// Unclassified errors are treated as transport-level faults.
		return true
	}
}

// BadShape wraps a parse or shape failure so the classifier treats it
// as non-retryable.
func BadShape(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadShape, fmt.Sprintf(format, args...))
}

// Upstream wraps an in-band upstream failure (a 200 whose body reports
// an error) so the classifier treats it as non-retryable.
func Upstream(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUpstream, fmt.Sprintf(format, args...))
}
