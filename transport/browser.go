package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// BrowserOptions configures the headless-browser strategy.
type BrowserOptions struct {
	Timeout   time.Duration
	ProxyURL  string
	UserAgent string
	Headless  bool
	// ExecPath overrides the Chrome binary discovery.
	ExecPath string
}

// Intercepted is one captured network response from a scenario run.
type Intercepted struct {
	URL        string
	StatusCode int
	Body       []byte
}

// JSON unmarshals the captured body, classifying failures as bad-shape.
func (i *Intercepted) JSON(v any) error {
	if err := json.Unmarshal(i.Body, v); err != nil {
		return BadShape("decode intercepted json: %v", err)
	}
	return nil
}

// Scenario describes a browser crawl: navigate to the entry page, clear
// consent overlays, drive the search form, trigger the search, and
// capture the fare API responses the page makes on its own behalf.
type Scenario struct {
	EntryURL string

	// StealthScript runs before any page script on every document.
	StealthScript string

	// ConsentSelectors are overlay elements neutralized after load by
	// setting pointer-events:none instead of clicking them away, which
	// avoids dismissal flows that navigate or reopen.
	ConsentSelectors []string

	// Steps drive the search form after consent handling. Adapters
	// compose these from chromedp primitives; date pickers that open
	// automatically must not be toggled again by a step.
	Steps []chromedp.Action

	// InterceptPatterns are URL substrings of the fare responses to
	// capture. The run finishes once ExpectResponses matches arrive or
	// the settle window elapses.
	InterceptPatterns []string
	ExpectResponses   int

	// SettleWait bounds how long to wait for intercepted responses
	// after the last step. Zero means 15s.
	SettleWait time.Duration
}

// stealthScript is the baseline applied to every scenario: headless
// Chrome leaks navigator.webdriver, which fare sites check first.
const stealthScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
window.chrome = window.chrome || {runtime: {}};
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3]});`

// Browser is the L3 strategy. Each Run gets a fresh browser context so
// scenarios never share state; the allocator (the Chrome process pool)
// is shared and owned by the Browser.
type Browser struct {
	opts BrowserOptions

	mu         sync.Mutex
	allocCtx   context.Context
	allocStop  context.CancelFunc
}

// NewBrowser builds the L3 strategy. Zero timeout defaults to 120s.
func NewBrowser(opts BrowserOptions) *Browser {
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Browser{opts: opts}
}

func (b *Browser) allocator(ctx context.Context) context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.allocCtx != nil && b.allocCtx.Err() == nil {
		return b.allocCtx
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(b.opts.UserAgent),
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.WindowSize(1440, 900),
	)
	if b.opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(b.opts.ProxyURL))
	}
	if b.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.opts.ExecPath))
	}

	b.allocCtx, b.allocStop = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	return b.allocCtx
}

// disableOverlays neutralizes consent and promo overlays by removing
// their pointer events rather than clicking through them.
func disableOverlays(selectors []string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, sel := range selectors {
			js := fmt.Sprintf(
				`document.querySelectorAll(%q).forEach(el => { el.style.pointerEvents = 'none'; el.style.zIndex = '-1'; });`,
				sel)
			if err := chromedp.Evaluate(js, nil).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// Run executes a scenario and returns the intercepted fare responses in
// arrival order.
func (b *Browser) Run(ctx context.Context, sc Scenario) ([]Intercepted, error) {
	if sc.ExpectResponses == 0 {
		sc.ExpectResponses = 1
	}
	if sc.SettleWait == 0 {
		sc.SettleWait = 15 * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	tabCtx, cancelTab := chromedp.NewContext(b.allocator(runCtx))
	defer cancelTab()

	// Bind the tab's lifetime to the run deadline.
	go func() {
		<-runCtx.Done()
		cancelTab()
	}()

	var (
		mu       sync.Mutex
		pending  = map[network.RequestID]string{}
		captured []Intercepted
		done     = make(chan struct{})
		doneOnce sync.Once
	)

	matches := func(u string) bool {
		for _, p := range sc.InterceptPatterns {
			if strings.Contains(u, p) {
				return true
			}
		}
		return false
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if matches(e.Response.URL) {
				mu.Lock()
				pending[e.RequestID] = e.Response.URL
				mu.Unlock()
			}
		case *network.EventLoadingFinished:
			mu.Lock()
			u, ok := pending[e.RequestID]
			delete(pending, e.RequestID)
			mu.Unlock()
			if !ok {
				return
			}
			// Body retrieval needs the tab's CDP executor; the event
			// callback itself must not block.
			go func(id network.RequestID, u string) {
				c := chromedp.FromContext(tabCtx)
				body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(tabCtx, c.Target))
				if err != nil {
					return
				}
				mu.Lock()
				captured = append(captured, Intercepted{URL: u, StatusCode: 200, Body: body})
				n := len(captured)
				mu.Unlock()
				if n >= sc.ExpectResponses {
					doneOnce.Do(func() { close(done) })
				}
			}(e.RequestID, u)
		}
	})

	actions := []chromedp.Action{
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			script := stealthScript
			if sc.StealthScript != "" {
				script += "\n" + sc.StealthScript
			}
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
		chromedp.Navigate(sc.EntryURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if len(sc.ConsentSelectors) > 0 {
		actions = append(actions,
			chromedp.Sleep(2*time.Second),
			disableOverlays(sc.ConsentSelectors),
		)
	}
	actions = append(actions, sc.Steps...)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if runCtx.Err() != nil {
			return nil, fmt.Errorf("%w: browser run deadline: %v", ErrTransport, runCtx.Err())
		}
		return nil, fmt.Errorf("%w: browser run: %v", ErrTransport, err)
	}

	select {
	case <-done:
	case <-time.After(sc.SettleWait):
	case <-runCtx.Done():
	}

	mu.Lock()
	out := append([]Intercepted(nil), captured...)
	mu.Unlock()

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no fare responses intercepted from %s", ErrAntiBot, sc.EntryURL)
	}
	return out, nil
}

// PageFetch navigates to entryURL and then issues an HTTP call from
// inside the page via fetch(), inheriting the page's cookies, origin
// and fingerprint. This is the escape hatch for APIs that reject any
// request not originating from the site itself.
func (b *Browser) PageFetch(ctx context.Context, entryURL, fetchURL, method, body string, headers map[string]string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	tabCtx, cancelTab := chromedp.NewContext(b.allocator(runCtx))
	defer cancelTab()

	go func() {
		<-runCtx.Done()
		cancelTab()
	}()

	hdr, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}
	bodyJS, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	bodyExpr := string(bodyJS)
	if body == "" {
		bodyExpr = "undefined"
	}

	js := fmt.Sprintf(`fetch(%q, {method: %q, headers: %s, body: %s, credentials: 'include'})
		.then(r => r.text())`, fetchURL, method, hdr, bodyExpr)

	var text string
	err = chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, e := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return e
		}),
		chromedp.Navigate(entryURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(js, &text, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: page fetch: %v", ErrTransport, err)
	}
	if HasAntiBotMarker(text) {
		return nil, fmt.Errorf("%w: marker in page fetch response", ErrAntiBot)
	}
	return []byte(text), nil
}

// HealthCheck verifies a browser can be launched and reach a blank page.
func (b *Browser) HealthCheck(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	tabCtx, cancelTab := chromedp.NewContext(b.allocator(checkCtx))
	defer cancelTab()
	return chromedp.Run(tabCtx, chromedp.Navigate("about:blank")) == nil
}

// Close tears down the shared Chrome allocator. Safe to call twice.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.allocStop != nil {
		b.allocStop()
		b.allocStop = nil
		b.allocCtx = nil
	}
	return nil
}
