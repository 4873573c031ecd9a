package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/core"
	"github.com/skyfare/skyfare/merge"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/pkg/metrics"
	"github.com/skyfare/skyfare/queue"
)

// Dispatcher runs crawl work against registered sources.
type Dispatcher interface {
	DispatchSingle(ctx context.Context, source string, req core.SearchRequest) core.CrawlResult
	DispatchParallel(ctx context.Context, sources []string, req core.SearchRequest) []core.CrawlResult
}

// Store persists merged flights.
type Store interface {
	StoreFlights(ctx context.Context, flights []core.NormalizedFlight) (int, error)
}

// Manager manages a pool of workers draining the crawl queues.
type Manager struct {
	queue          queue.Queue
	dispatcher     Dispatcher
	store          Store
	config         config.WorkerConfig
	scheduler      *Scheduler
	defaultSources []string

	stopChan chan struct{}
	workerWg sync.WaitGroup
}

// NewManager creates a new worker manager. defaultSources is the
// fan-out set used when a crawl_parallel payload names none. The
// scheduler may be nil when this instance only drains queues.
func NewManager(q queue.Queue, dispatcher Dispatcher, store Store, defaultSources []string, cfg config.WorkerConfig, scheduler *Scheduler) *Manager {
	return &Manager{
		queue:          q,
		dispatcher:     dispatcher,
		store:          store,
		config:         cfg,
		scheduler:      scheduler,
		defaultSources: defaultSources,
		stopChan:       make(chan struct{}),
	}
}

// Start starts the worker pool and, when configured, the scheduler.
func (m *Manager) Start() {
	logger.Info("starting worker pool", "workers", m.config.Concurrency)

	for i := 0; i < m.config.Concurrency; i++ {
		m.workerWg.Add(1)
		go m.runWorker(i)
	}

	if m.scheduler != nil {
		if err := m.scheduler.Start(); err != nil {
			logger.Error(err, "failed to start scheduler")
		}
	}
}

// Stop stops the scheduler and waits for in-flight jobs up to the
// shutdown timeout.
func (m *Manager) Stop() {
	logger.Info("stopping worker pool")

	if m.scheduler != nil {
		m.scheduler.Stop()
	}

	close(m.stopChan)

	done := make(chan struct{})
	go func() {
		m.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all workers stopped")
	case <-time.After(m.config.ShutdownTimeout):
		logger.Warn("worker shutdown timed out")
	}
}

func (m *Manager) runWorker(id int) {
	defer m.workerWg.Done()
	logger.Debug("worker started", "worker", id)

	queues := []string{QueueCrawlSingle, QueueCrawlParallel, QueueMergeStore}
	for {
		select {
		case <-m.stopChan:
			logger.Debug("worker stopping", "worker", id)
			return
		default:
			for _, name := range queues {
				if err := m.processQueue(name); err != nil {
					logger.Error(err, "queue processing error", "worker", id, "queue", name)
				}
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// processQueue takes one job off the named queue, if any, and runs it
// under the job timeout.
func (m *Manager) processQueue(queueName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.JobTimeout)
	defer cancel()

	job, err := m.queue.Dequeue(ctx, queueName)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to dequeue job: %w", err)
	}
	if job == nil {
		return nil
	}

	logger.Info("processing job", "queue", queueName, "job", job.ID, "attempt", job.Attempts)

	if err := m.processJob(ctx, queueName, job); err != nil {
		logger.Error(err, "job failed", "queue", queueName, "job", job.ID)
		if nackErr := m.queue.Nack(ctx, queueName, job.ID); nackErr != nil {
			logger.Error(nackErr, "failed to nack job", "job", job.ID)
		}
		return fmt.Errorf("failed to process job: %w", err)
	}

	if err := m.queue.Ack(ctx, queueName, job.ID); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}

	logger.Info("completed job", "queue", queueName, "job", job.ID)
	return nil
}

func (m *Manager) processJob(ctx context.Context, queueName string, job *queue.Job) error {
	switch queueName {
	case QueueCrawlSingle:
		var payload CrawlSinglePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal crawl_single payload: %w", err)
		}
		return m.processCrawlSingle(ctx, payload)

	case QueueCrawlParallel:
		var payload CrawlParallelPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal crawl_parallel payload: %w", err)
		}
		return m.processCrawlParallel(ctx, payload)

	case QueueMergeStore:
		var payload MergeStorePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal merge_and_store payload: %w", err)
		}
		return m.processMergeStore(ctx, payload)

	default:
		return fmt.Errorf("unknown job type: %s", queueName)
	}
}

// processCrawlSingle crawls one source and stores its merged output.
// A failed envelope returns an error so the queue retries the job.
func (m *Manager) processCrawlSingle(ctx context.Context, payload CrawlSinglePayload) error {
	result := m.dispatcher.DispatchSingle(ctx, payload.Source, payload.Request)
	if !result.Success {
		return fmt.Errorf("crawl %s failed: %s", payload.Source, result.Error)
	}

	return m.storeResults(ctx, []core.CrawlResult{result})
}

// processCrawlParallel fans the search out and enqueues the results
// for the merge stage. Individual source failures are tolerated; only
// a fully failed fan-out errors the job.
func (m *Manager) processCrawlParallel(ctx context.Context, payload CrawlParallelPayload) error {
	sources := payload.Sources
	if len(sources) == 0 {
		sources = m.defaultSources
	}
	if len(sources) == 0 {
		return fmt.Errorf("crawl_parallel payload has no sources")
	}

	results := m.dispatcher.DispatchParallel(ctx, sources, payload.Request)

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	if succeeded == 0 {
		return fmt.Errorf("all %d sources failed for %s-%s",
			len(sources), payload.Request.Origin, payload.Request.Destination)
	}

	if _, err := m.queue.Enqueue(ctx, QueueMergeStore, MergeStorePayload{Results: results}); err != nil {
		return fmt.Errorf("failed to enqueue merge job: %w", err)
	}

	logger.Info("crawl fan-out complete",
		"origin", payload.Request.Origin, "destination", payload.Request.Destination,
		"sources", len(sources), "succeeded", succeeded)
	return nil
}

func (m *Manager) processMergeStore(ctx context.Context, payload MergeStorePayload) error {
	return m.storeResults(ctx, payload.Results)
}

// storeResults merges envelopes and persists the result, recording a
// summary for observability.
func (m *Manager) storeResults(ctx context.Context, results []core.CrawlResult) error {
	merged := merge.Merge(results)
	metrics.AddMerged(len(merged))

	stored, err := m.store.StoreFlights(ctx, merged)
	if err != nil {
		return fmt.Errorf("failed to store flights: %w", err)
	}
	metrics.AddStored(stored)

	summary := StoreSummary{
		StoredCount: stored,
		MergedCount: len(merged),
		Timestamp:   time.Now().UTC(),
	}
	for _, r := range results {
		if r.Success {
			summary.Sources = append(summary.Sources, string(r.Source))
		}
	}

	logger.Info("store summary",
		"stored", summary.StoredCount, "merged", summary.MergedCount,
		"sources", summary.Sources)
	return nil
}

// GetScheduler returns the scheduler instance, which may be nil.
func (m *Manager) GetScheduler() *Scheduler {
	return m.scheduler
}
