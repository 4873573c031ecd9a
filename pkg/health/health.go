// Package health aggregates component probes into a single report the
// operational API serves. Each probe is a Checker; the aggregate is
// down as soon as any probe is.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skyfare/skyfare/db"
	"github.com/skyfare/skyfare/queue"
	"github.com/skyfare/skyfare/worker"
)

// Status is a component's probe outcome.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Check is a single probe result.
type Check struct {
	Name      string            `json:"name"`
	Status    Status            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
}

// Report is the aggregate over every registered probe.
type Report struct {
	Status    Status           `json:"status"`
	Version   string           `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	Uptime    time.Duration    `json:"uptime"`
}

// Checker is a single component probe.
type Checker interface {
	Check(ctx context.Context) Check
}

// PostgresChecker probes the fare store.
type PostgresChecker struct {
	DB   *db.PostgresDB
	Name string
}

func (c *PostgresChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{Name: c.Name, Timestamp: start, Details: map[string]string{}}

	err := c.DB.GetDB().PingContext(ctx)
	check.Duration = time.Since(start)

	if err != nil {
		check.Status = StatusDown
		check.Message = fmt.Sprintf("database connection failed: %v", err)
		check.Details["error"] = err.Error()
	} else {
		check.Status = StatusUp
		check.Message = "database connection successful"
		check.Details["response_time"] = check.Duration.String()
	}
	return check
}

// RedisChecker probes the Redis instance backing the queue and the
// rate limiter.
type RedisChecker struct {
	Client *redis.Client
	Name   string
}

func (c *RedisChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{Name: c.Name, Timestamp: start, Details: map[string]string{}}

	pong, err := c.Client.Ping(ctx).Result()
	check.Duration = time.Since(start)

	if err != nil {
		check.Status = StatusDown
		check.Message = fmt.Sprintf("redis connection failed: %v", err)
		check.Details["error"] = err.Error()
	} else {
		check.Status = StatusUp
		check.Message = "redis connection successful"
		check.Details["response_time"] = check.Duration.String()
		check.Details["ping_response"] = pong
	}
	return check
}

// QueueChecker probes the crawl job queue and reports its depth.
type QueueChecker struct {
	Queue queue.Queue
	Name  string
}

func (c *QueueChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{Name: c.Name, Timestamp: start, Details: map[string]string{}}

	stats, err := c.Queue.GetQueueStats(ctx, worker.QueueCrawlSingle)
	check.Duration = time.Since(start)

	if err != nil {
		check.Status = StatusDown
		check.Message = fmt.Sprintf("queue stats failed: %v", err)
		check.Details["error"] = err.Error()
		return check
	}

	check.Status = StatusUp
	check.Message = "queue is operational"
	check.Details["response_time"] = check.Duration.String()
	if pending, ok := stats["pending"]; ok {
		check.Details["pending_jobs"] = fmt.Sprintf("%d", pending)
	}
	if processing, ok := stats["processing"]; ok {
		check.Details["processing_jobs"] = fmt.Sprintf("%d", processing)
	}
	return check
}

// SourceChecker probes one fare source through its adapter. Probes are
// cheap by contract but still hit the network, so these belong on the
// full health endpoint only, never on readiness.
type SourceChecker struct {
	Prober interface {
		HealthCheck(ctx context.Context) bool
	}
	Name string
}

func (c *SourceChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{Name: c.Name, Timestamp: start}

	ok := c.Prober.HealthCheck(ctx)
	check.Duration = time.Since(start)

	if !ok {
		check.Status = StatusDown
		check.Message = "source unreachable"
	} else {
		check.Status = StatusUp
		check.Message = "source reachable"
	}
	return check
}

// HealthChecker fans probes out and folds their statuses.
type HealthChecker struct {
	checkers  []Checker
	version   string
	startTime time.Time
}

func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{version: version, startTime: time.Now()}
}

func (h *HealthChecker) AddChecker(checker Checker) {
	h.checkers = append(h.checkers, checker)
}

// CheckHealth runs every probe.
func (h *HealthChecker) CheckHealth(ctx context.Context) Report {
	return h.report(ctx, h.checkers)
}

// CheckReadiness runs only the storage probes: a worker can serve with
// a flaky source, but not without its database or queue.
func (h *HealthChecker) CheckReadiness(ctx context.Context) Report {
	var essential []Checker
	for _, checker := range h.checkers {
		switch checker.(type) {
		case *PostgresChecker, *RedisChecker:
			essential = append(essential, checker)
		}
	}
	return h.report(ctx, essential)
}

// CheckLiveness reports the process itself.
func (h *HealthChecker) CheckLiveness(ctx context.Context) Report {
	return Report{
		Status:    StatusUp,
		Version:   h.version,
		Timestamp: time.Now(),
		Checks: map[string]Check{
			"application": {
				Name:      "application",
				Status:    StatusUp,
				Message:   "application is running",
				Timestamp: time.Now(),
			},
		},
		Uptime: time.Since(h.startTime),
	}
}

func (h *HealthChecker) report(ctx context.Context, checkers []Checker) Report {
	checks := make(map[string]Check)
	overall := StatusUp

	for _, checker := range checkers {
		check := checker.Check(ctx)
		checks[check.Name] = check
		if check.Status == StatusDown {
			overall = StatusDown
		}
	}

	return Report{
		Status:    overall,
		Version:   h.version,
		Timestamp: time.Now(),
		Checks:    checks,
		Uptime:    time.Since(h.startTime),
	}
}
