// Package crawler defines the contract every fare source implements and
// the registry the dispatcher resolves sources through.
package crawler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/skyfare/skyfare/core"
)

// Crawler is the uniform interface over every fare source. Crawl never
// returns an error: failures are folded into the result envelope so a
// bad source can never break a fan-out.
type Crawler interface {
	// Name identifies the source, e.g. "lufthansa".
	Name() string

	// Crawl executes one search against the source. The returned
	// envelope carries either normalized flights or a failure.
	Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult

	// HealthCheck reports whether the source is currently reachable
	// with a cheap probe.
	HealthCheck(ctx context.Context) bool

	// Close releases transports and sessions. Idempotent.
	Close() error
}

// Constructor builds a crawler from nothing; configuration is closed
// over at registration time.
type Constructor func() (Crawler, error)

// Registry maps source names to constructors. Sources register
// themselves from init or from explicit wiring in main.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{}}
}

// Register adds a source constructor, replacing any existing entry with
// the same name.
func (r *Registry) Register(name string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = c
}

// Build instantiates the named source.
func (r *Registry) Build(name string) (Crawler, error) {
	r.mu.RLock()
	c, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	return c()
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for n := range r.constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a source is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[name]
	return ok
}

// Fallback chains crawlers in priority order: Crawl returns the first
// successful envelope, falling through on failure. Used for sources
// with an official API that degrades to scraping, and for L2 sources
// that degrade to a browser run.
type Fallback struct {
	name   string
	inners []Crawler
}

// NewFallback builds a compound crawler over the given inners.
func NewFallback(name string, inners ...Crawler) *Fallback {
	return &Fallback{name: name, inners: inners}
}

func (f *Fallback) Name() string { return f.name }

// Crawl tries each inner in order. The last failure envelope is
// returned when all inners fail; its error names every attempt.
func (f *Fallback) Crawl(ctx context.Context, task core.CrawlTask) core.CrawlResult {
	start := time.Now()
	var errs []string
	for _, inner := range f.inners {
		if ctx.Err() != nil {
			break
		}
		res := inner.Crawl(ctx, task)
		if res.Success {
			return res
		}
		errs = append(errs, fmt.Sprintf("%s: %s", inner.Name(), res.Error))
	}
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err().Error())
	}
	return core.FailedCrawlResult(task.Source,
		fmt.Errorf("all sources failed: %v", errs), time.Since(start))
}

// HealthCheck passes when any inner passes.
func (f *Fallback) HealthCheck(ctx context.Context) bool {
	for _, inner := range f.inners {
		if inner.HealthCheck(ctx) {
			return true
		}
	}
	return false
}

// Close closes every inner, returning the first error.
func (f *Fallback) Close() error {
	var first error
	for _, inner := range f.inners {
		if err := inner.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
