package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DirectOptions configures the plain HTTP strategy.
type DirectOptions struct {
	Timeout   time.Duration
	RetryMax  int
	ProxyURL  string
	UserAgent string
	// Headers are sent on every request in addition to per-call headers.
	Headers map[string]string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Direct is the plain HTTP strategy for sources without TLS
// fingerprinting or JS rendering requirements. It keeps a cookie jar
// across calls and retries transient failures at the HTTP layer.
type Direct struct {
	client *retryablehttp.Client
	opts   DirectOptions
}

func directRetryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return false, ctx.Err()
			}
		}
		if resp != nil {
			// 4xx is the adapter's problem, not the transport's.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return false, nil
			}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return true, nil
			}
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
}

// NewDirect builds the L1 client. Zero-value options get the crawl
// defaults: 30s timeout, 3 HTTP-layer retries, a desktop Chrome UA.
func NewDirect(opts DirectOptions) (*Direct, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.Logger = nil
	client.CheckRetry = directRetryPolicy()
	client.RetryWaitMin = time.Second
	client.HTTPClient.Timeout = opts.Timeout

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("new direct transport: %w", err)
	}
	client.HTTPClient.Jar = jar

	if opts.ProxyURL != "" {
		proxy, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("new direct transport: invalid proxy url: %w", err)
		}
		client.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}

	return &Direct{client: client, opts: opts}, nil
}

// Response is the uniform result of a transport call: status, body,
// and the headers adapters occasionally need (cookies, pagination).
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// JSON unmarshals the body into v, classifying parse failures as
// bad-shape errors.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return BadShape("decode json: %v", err)
	}
	return nil
}

// Do sends a request and classifies the outcome. Network-level
// failures surface as ErrTransport; non-2xx statuses surface through
// StatusError. The body is always fully read and returned, including
// on error statuses, so callers can inspect markers.
func (d *Direct) Do(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", d.opts.UserAgent)
	for k, v := range d.opts.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := d.client.Do(req)
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

	resp := &Response{StatusCode: res.StatusCode, Body: data, Header: res.Header}
	if err := StatusError(res.StatusCode, string(data)); err != nil {
		return resp, err
	}
	return resp, nil
}

// Get performs a GET with optional headers.
func (d *Direct) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return d.Do(ctx, http.MethodGet, rawURL, nil, headers)
}

// GetJSON fetches rawURL and decodes the 2xx body into out.
func (d *Direct) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	res, err := d.Get(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	return res.JSON(out)
}

// PostJSON sends payload as a JSON body and decodes the 2xx response
// into out when out is non-nil.
func (d *Direct) PostJSON(ctx context.Context, rawURL string, payload any, headers map[string]string, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	res, err := d.Do(ctx, http.MethodPost, rawURL, bytes.NewReader(data), h)
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
func (d *Direct) PostForm(ctx context.Context, rawURL string, form url.Values, headers map[string]string, out any) error {
	h := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for k, v := range headers {
		h[k] = v
	}
	res, err := d.Do(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), h)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return res.JSON(out)
}

// Close releases idle connections.
func (d *Direct) Close() error {
	d.client.HTTPClient.CloseIdleConnections()
	return nil
}
