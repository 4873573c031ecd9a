// Package notify sends operational alerts through an ntfy topic.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/pkg/logger"
)

// AlertType partitions alerts for per-type rate limiting.
type AlertType string

const (
	AlertSweepStarted  AlertType = "sweep_started"
	AlertSweepComplete AlertType = "sweep_complete"
	AlertErrorSpike    AlertType = "error_spike"
	AlertInfo          AlertType = "info"
)

// Priority follows the ntfy 1..5 scale.
type Priority int

const (
	PriorityLow     Priority = 2
	PriorityDefault Priority = 3
	PriorityHigh    Priority = 4
)

type message struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority Priority `json:"priority"`
	Tags     []string `json:"tags,omitempty"`
}

// Client publishes alerts. A nil client drops everything, so callers
// never have to guard for notifications being disabled.
type Client struct {
	cfg        config.NTFYConfig
	httpClient *http.Client

	mu         sync.Mutex
	lastAlerts map[AlertType]time.Time
	minGap     time.Duration
}

// NewClient returns a client, or nil when notifications are disabled.
func NewClient(cfg config.NTFYConfig) *Client {
	if !cfg.Enabled {
		return nil
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		lastAlerts: make(map[AlertType]time.Time),
		minGap:     5 * time.Minute,
	}
}

// Send publishes one alert. Alerts of the same type inside the minimum
// gap are dropped to keep a flapping source from spamming the topic.
func (c *Client) Send(ctx context.Context, typ AlertType, priority Priority, title, body string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	if last, ok := c.lastAlerts[typ]; ok && time.Since(last) < c.minGap {
		c.mu.Unlock()
		return
	}
	c.lastAlerts[typ] = time.Now()
	c.mu.Unlock()

	payload, err := json.Marshal(message{
		Topic:    c.cfg.Topic,
		Title:    title,
		Message:  body,
		Priority: priority,
		Tags:     []string{string(typ)},
	})
	if err != nil {
		logger.Error(err, "failed to encode alert")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServerURL, bytes.NewReader(payload))
	if err != nil {
		logger.Error(err, "failed to build alert request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error(err, "failed to send alert", "type", typ)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		logger.Warn("alert rejected", "type", typ, "status", resp.StatusCode)
	}
}

// SweepStarted announces a scheduled sweep kickoff.
func (c *Client) SweepStarted(ctx context.Context, name, origin, destination string) {
	c.Send(ctx, AlertSweepStarted, PriorityLow,
		"Sweep started",
		fmt.Sprintf("%s: %s-%s", name, origin, destination))
}

// ErrorSpike reports a source whose failures crossed the breaker
// threshold.
func (c *Client) ErrorSpike(ctx context.Context, source string, failures int) {
	c.Send(ctx, AlertErrorSpike, PriorityHigh,
		"Source error spike",
		fmt.Sprintf("%s failed %d consecutive crawls, circuit opened", source, failures))
}
