package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// ImpersonateOptions configures the TLS-impersonating strategy.
type ImpersonateOptions struct {
	Timeout   time.Duration
	ProxyURL  string
	UserAgent string
	// WarmURLs are fetched in order before the first real request of a
	// session, collecting the cookies fingerprint-sensitive sites set
	// on their landing pages.
	WarmURLs []string
	// Headers are sent on every request.
	Headers map[string]string
}

// Impersonate is the L2 strategy: requests carry a browser TLS
// fingerprint so sites that reject Go's native handshake accept them.
// A fresh underlying client is built per request; cookies persist in a
// shared jar across requests within the session. When a response body
// carries an anti-bot marker the session marks itself stale and the
// next request re-runs the warm-up.
type Impersonate struct {
	opts ImpersonateOptions

	mu     sync.Mutex
	jar    tls_client.CookieJar
	warmed bool
}

// NewImpersonate builds the L2 strategy. Zero timeout defaults to 45s.
func NewImpersonate(opts ImpersonateOptions) *Impersonate {
	if opts.Timeout == 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Impersonate{
		opts: opts,
		jar:  tls_client.NewCookieJar(),
	}
}

// newClient builds a fresh TLS client over the shared cookie jar.
func (im *Impersonate) newClient() (tls_client.HttpClient, error) {
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(im.opts.Timeout.Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_124),
		tls_client.WithCookieJar(im.jar),
		tls_client.WithRandomTLSExtensionOrder(),
	}
	if im.opts.ProxyURL != "" {
		options = append(options, tls_client.WithProxyUrl(im.opts.ProxyURL))
	}
	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("new impersonating client: %w", err)
	}
	return client, nil
}

// Reset discards session state so the next request starts from a clean
// jar and re-runs the warm-up.
func (im *Impersonate) Reset() {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.jar = tls_client.NewCookieJar()
	im.warmed = false
}

// warm fetches the configured warm-up URLs, tolerating individual
// failures. Sites that gate their fare APIs behind landing-page cookies
// need at least one of these to succeed.
func (im *Impersonate) warm(ctx context.Context) error {
	if len(im.opts.WarmURLs) == 0 {
		return nil
	}
	var lastErr error
	ok := false
	for _, u := range im.opts.WarmURLs {
		if _, err := im.do(ctx, fhttp.MethodGet, u, nil, nil); err != nil {
			lastErr = err
			continue
		}
		ok = true
	}
	if !ok {
		return fmt.Errorf("warm-up failed: %w", lastErr)
	}
	return nil
}

func (im *Impersonate) do(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*Response, error) {
	client, err := im.newClient()
	if err != nil {
		return nil, err
	}
	defer client.CloseIdleConnections()

	req, err := fhttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = fhttp.Header{
		"accept":          {"application/json, text/plain, */*"},
		"accept-language": {"en-US,en;q=0.9,ko;q=0.8"},
		"user-agent":      {im.opts.UserAgent},
		fhttp.HeaderOrderKey: {
			"accept", "accept-language", "content-type", "user-agent",
		},
	}
	for k, v := range im.opts.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	resp := &Response{StatusCode: res.StatusCode, Body: data}
	if HasAntiBotMarker(string(data)) {
		im.mu.Lock()
		im.warmed = false
		im.mu.Unlock()
		return resp, fmt.Errorf("%w: marker in response body", ErrAntiBot)
	}
	if err := StatusError(res.StatusCode, string(data)); err != nil {
		return resp, err
	}
	return resp, nil
}

// Do sends a request, running the warm-up first when the session is
// cold or was invalidated by an anti-bot response.
func (im *Impersonate) Do(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*Response, error) {
	im.mu.Lock()
	needWarm := !im.warmed
	im.mu.Unlock()

	if needWarm {
		if err := im.warm(ctx); err != nil {
			return nil, err
		}
		im.mu.Lock()
		im.warmed = true
		im.mu.Unlock()
	}

	return im.do(ctx, method, rawURL, body, headers)
}

// Get performs a GET with optional headers.
func (im *Impersonate) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return im.Do(ctx, fhttp.MethodGet, rawURL, nil, headers)
}

// GetJSON fetches rawURL and decodes the 2xx body into out.
func (im *Impersonate) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	res, err := im.Get(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	return res.JSON(out)
}

// PostJSON sends payload as a JSON body and decodes the 2xx response
// into out when out is non-nil.
func (im *Impersonate) PostJSON(ctx context.Context, rawURL string, payload any, headers map[string]string, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	h := map[string]string{"content-type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	res, err := im.Do(ctx, fhttp.MethodPost, rawURL, bytes.NewReader(data), h)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return res.JSON(out)
}

// PostForm sends url-encoded form values and decodes the 2xx response
// into out when out is non-nil.
func (im *Impersonate) PostForm(ctx context.Context, rawURL string, form url.Values, headers map[string]string, out any) error {
	h := map[string]string{"content-type": "application/x-www-form-urlencoded"}
	for k, v := range headers {
		h[k] = v
	}
	res, err := im.Do(ctx, fhttp.MethodPost, rawURL, strings.NewReader(form.Encode()), h)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return res.JSON(out)
}

// Cookies returns the session cookies for rawURL, for adapters that
// harvest browser cookies into API calls.
func (im *Impersonate) Cookies(rawURL string) []*fhttp.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.jar.Cookies(u)
}

// SetCookies injects cookies into the session jar, used by compound
// adapters that harvest a browser session and continue over L2.
func (im *Impersonate) SetCookies(rawURL string, cookies []*fhttp.Cookie) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	im.jar.SetCookies(u, cookies)
	im.warmed = true
}

// Close is a no-op; per-request clients own no persistent resources.
func (im *Impersonate) Close() error { return nil }
