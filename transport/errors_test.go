package transport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"200 ok", 200, "{}", nil},
		{"204 ok", 204, "", nil},
		{"429 rate limited", 429, "", ErrRateLimited},
		{"401 auth expired", 401, "", ErrAuthExpired},
		{"403 plain is client error", 403, "forbidden", ErrClient},
		{"403 cloudflare interstitial", 403, "<title>Just a moment...</title>", ErrAntiBot},
		{"403 turnstile", 403, `<div class="cf-turnstile"></div>`, ErrAntiBot},
		{"403 akamai reference", 403, "error code DS-30037", ErrAntiBot},
		{"400 client error", 400, "", ErrClient},
		{"404 client error", 404, "", ErrClient},
		{"500 server error", 500, "", ErrServer},
		{"503 server error", 503, "", ErrServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := StatusError(tt.status, tt.body)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestRetryableClassification(t *testing.T) {
	retryable := []error{
		fmt.Errorf("%w: dial tcp refused", ErrTransport),
		fmt.Errorf("%w: status 502", ErrServer),
		fmt.Errorf("%w: status 429", ErrRateLimited),
		fmt.Errorf("%w: status 403", ErrAntiBot),
		fmt.Errorf("%w: status 401", ErrAuthExpired),
		errors.New("something unclassified"),
	}
	for _, err := range retryable {
		assert.True(t, Retryable(err), "expected retryable: %v", err)
	}

	nonRetryable := []error{
		nil,
		fmt.Errorf("%w: status 400", ErrClient),
		BadShape("missing field itineraries"),
		fmt.Errorf("%w: graphql errors present", ErrUpstream),
	}
	for _, err := range nonRetryable {
		assert.False(t, Retryable(err), "expected non-retryable: %v", err)
	}
}

func TestBadShapeWrapping(t *testing.T) {
	err := BadShape("missing field %q", "fares")
	assert.ErrorIs(t, err, ErrBadShape)
	assert.Contains(t, err.Error(), `missing field "fares"`)
}

func TestHasAntiBotMarker(t *testing.T) {
	assert.True(t, HasAntiBotMarker("checking your browser... Just a moment"))
	assert.False(t, HasAntiBotMarker(`{"fares": []}`))
}
