// Package oauth2 implements the client-credentials token lifecycle
// used by developer-portal airline APIs: in-memory cache, refresh 60
// seconds before expiry, and explicit invalidation on observed 401s.
package oauth2

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/transport"
)

// refreshEarly is subtracted from expires_in to avoid edge-case 401s
// right at the expiry boundary.
const refreshEarly = 60 * time.Second

// TokenSource fetches and caches a client-credentials bearer token.
type TokenSource struct {
	http         *transport.Direct
	tokenURL     string
	clientID     string
	clientSecret string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// New builds a token source posting to tokenURL over the given
// transport.
func New(http *transport.Direct, tokenURL, clientID, clientSecret string) *TokenSource {
	return &TokenSource{
		http:         http,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// Token returns the cached token, fetching a fresh one when absent or
// within the early-refresh window.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expiresAt) {
		return ts.token, nil
	}
	return ts.fetchLocked(ctx)
}

// Invalidate drops the cached token so the next Token call re-authenticates.
// Call it after an observed 401.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.expiresAt = time.Time{}
	ts.mu.Unlock()
}

func (ts *TokenSource) fetchLocked(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", ts.clientID)
	form.Set("client_secret", ts.clientSecret)

	var body tokenResponse
	if err := ts.http.PostForm(ctx, ts.tokenURL, form, nil, &body); err != nil {
		return "", fmt.Errorf("oauth2 token request: %w", err)
	}
	if body.AccessToken == "" {
		return "", transport.BadShape("oauth2 token response missing access_token")
	}

	expiresIn := body.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 21600
	}
	ts.token = body.AccessToken
	ts.expiresAt = time.Now().Add(time.Duration(expiresIn)*time.Second - refreshEarly)

	logger.Debug("oauth2 token acquired", "url", ts.tokenURL, "expires_in", expiresIn)
	return ts.token, nil
}

// AuthHeaders returns the bearer headers for the current token.
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
		"Accept":        "application/json",
	}
}
