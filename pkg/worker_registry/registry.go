// Package worker_registry tracks live worker processes in Redis so the
// ops surface can list who is draining the crawl queues.
package worker_registry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Heartbeat is one worker process's periodic self-report.
type Heartbeat struct {
	ID            string    `json:"id"`
	Hostname      string    `json:"hostname"`
	Status        string    `json:"status"`
	Concurrency   int       `json:"concurrency"`
	Sources       int       `json:"sources"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Version       string    `json:"version"`
}

// Registry stores heartbeats in a sorted set scored by heartbeat time,
// with per-worker metadata hashes that expire on their own.
type Registry struct {
	client    *redis.Client
	namespace string
}

func New(client *redis.Client, namespace string) *Registry {
	return &Registry{client: client, namespace: namespace}
}

func (r *Registry) heartbeatsKey() string {
	return fmt.Sprintf("%s:workers:heartbeats", r.namespace)
}

func (r *Registry) metaKey(id string) string {
	return fmt.Sprintf("%s:workers:%s", r.namespace, id)
}

// Publish records hb and prunes entries older than ten TTLs. A nil
// registry is a no-op so callers can run without Redis.
func (r *Registry) Publish(ctx context.Context, hb Heartbeat, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return nil
	}
	if hb.ID == "" {
		return fmt.Errorf("worker id is required")
	}
	if ttl <= 0 {
		ttl = 45 * time.Second
	}

	now := time.Now().UTC()
	if hb.StartedAt.IsZero() {
		hb.StartedAt = now
	}
	if hb.LastHeartbeat.IsZero() {
		hb.LastHeartbeat = now
	}

	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, r.heartbeatsKey(), redis.Z{
		Score:  float64(hb.LastHeartbeat.Unix()),
		Member: hb.ID,
	})
	pipe.HSet(ctx, r.metaKey(hb.ID),
		"hostname", hb.Hostname,
		"status", hb.Status,
		"concurrency", strconv.Itoa(hb.Concurrency),
		"sources", strconv.Itoa(hb.Sources),
		"started_at", strconv.FormatInt(hb.StartedAt.Unix(), 10),
		"version", hb.Version,
	)
	pipe.Expire(ctx, r.metaKey(hb.ID), ttl*3)
	pipe.ZRemRangeByScore(ctx, r.heartbeatsKey(), "0",
		strconv.FormatInt(now.Add(-ttl*10).Unix(), 10))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return fmt.Errorf("publish heartbeat: %w", err)
	}
	return nil
}

// ListActive returns workers that heartbeated within the window,
// newest first.
func (r *Registry) ListActive(ctx context.Context, within time.Duration) ([]Heartbeat, error) {
	if r == nil || r.client == nil {
		return nil, nil
	}
	if within <= 0 {
		within = 45 * time.Second
	}

	now := time.Now().UTC()
	zs, err := r.client.ZRevRangeByScoreWithScores(ctx, r.heartbeatsKey(), &redis.ZRangeBy{
		Max: strconv.FormatInt(now.Unix(), 10),
		Min: strconv.FormatInt(now.Add(-within).Unix(), 10),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("list heartbeats: %w", err)
	}

	out := make([]Heartbeat, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok || id == "" {
			continue
		}
		meta, err := r.client.HGetAll(ctx, r.metaKey(id)).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("load heartbeat meta for %s: %w", id, err)
		}

		hb := Heartbeat{
			ID:            id,
			Hostname:      meta["hostname"],
			Status:        meta["status"],
			Version:       meta["version"],
			LastHeartbeat: time.Unix(int64(z.Score), 0).UTC(),
		}
		if v, err := strconv.Atoi(meta["concurrency"]); err == nil {
			hb.Concurrency = v
		}
		if v, err := strconv.Atoi(meta["sources"]); err == nil {
			hb.Sources = v
		}
		if v, err := strconv.ParseInt(meta["started_at"], 10, 64); err == nil {
			hb.StartedAt = time.Unix(v, 0).UTC()
		}
		if hb.Status == "" {
			hb.Status = "active"
		}
		out = append(out, hb)
	}
	return out, nil
}
