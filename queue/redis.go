package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/pkg/metrics"
)

// Persisted job blobs expire after a day; crawl results live in
// Postgres, the queue only tracks delivery state.
const jobTTL = 24 * time.Hour

// Job is a unit of crawl work flowing through a Redis stream. The
// payload stays opaque to the queue; workers decode it per job type.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Status      string          `json:"status"`
	StreamID    string          `json:"stream_id,omitempty"`
}

// Queue defines the interface for a job queue
type Queue interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error)
	Dequeue(ctx context.Context, queueName string) (*Job, error)
	Ack(ctx context.Context, queueName, jobID string) error
	Nack(ctx context.Context, queueName, jobID string) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	GetJobStatus(ctx context.Context, jobID string) (string, error)
	GetQueueStats(ctx context.Context, queueName string) (map[string]int64, error)
	Close() error
}

// RedisQueue implements Queue on Redis streams with consumer groups.
// Each job type gets its own stream; stale deliveries are reclaimed
// via XAUTOCLAIM once their visibility timeout lapses.
type RedisQueue struct {
	client       *redis.Client
	cfg          config.RedisConfig
	maxAttempts  int
	consumerName string

	mu              sync.Mutex
	ensuredStreams  map[string]struct{}
	lastAutoClaimID map[string]string
}

// NewRedisQueue connects to Redis and verifies the connection. The
// consumer name derives from the hostname so parallel workers claim
// under distinct identities.
func NewRedisQueue(cfg config.RedisConfig, maxAttempts int) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &RedisQueue{
		client:          client,
		cfg:             cfg,
		maxAttempts:     maxAttempts,
		consumerName:    fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		ensuredStreams:  map[string]struct{}{},
		lastAutoClaimID: map[string]string{},
	}, nil
}

// Enqueue adds a job to the stream for its type and returns the job ID.
func (q *RedisQueue) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := Job{
		ID:          fmt.Sprintf("%s-%d", jobType, time.Now().UnixNano()),
		Type:        jobType,
		Payload:     payloadBytes,
		CreatedAt:   time.Now().UTC(),
		MaxAttempts: q.maxAttempts,
		Status:      "pending",
	}

	if err := q.ensureStream(ctx, jobType); err != nil {
		return "", err
	}

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	streamID, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamName(jobType),
		Values: map[string]interface{}{"job": string(jobBytes)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add job to stream: %w", err)
	}

	job.StreamID = streamID
	if err := q.persistJob(ctx, &job); err != nil {
		return "", err
	}
	if err := q.client.SAdd(ctx, q.pendingKey(jobType), job.ID).Err(); err != nil {
		return "", fmt.Errorf("failed to mark job pending: %w", err)
	}

	metrics.ObserveJob(jobType, "enqueued")
	return job.ID, nil
}

// Dequeue returns the next job for the queue, or nil when none is
// available within the block timeout. Stale deliveries abandoned by
// dead consumers are reclaimed before fresh reads.
func (q *RedisQueue) Dequeue(ctx context.Context, queueName string) (*Job, error) {
	if err := q.ensureStream(ctx, queueName); err != nil {
		return nil, err
	}

	if job, err := q.claimStale(ctx, queueName); err != nil {
		return nil, err
	} else if job != nil {
		return job, nil
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.QueueGroup,
		Consumer: q.consumerName,
		Streams:  []string{q.streamName(queueName), ">"},
		Count:    1,
		Block:    q.cfg.QueueBlockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	return q.prepareMessage(ctx, queueName, streams[0].Messages[0])
}

// Ack marks a job completed and removes its stream entry.
func (q *RedisQueue) Ack(ctx context.Context, queueName, jobID string) error {
	job, jobKey, err := q.getStoredJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.StreamID != "" {
		stream := q.streamName(queueName)
		if err := q.client.XAck(ctx, stream, q.cfg.QueueGroup, job.StreamID).Err(); err != nil {
			return fmt.Errorf("failed to ack message: %w", err)
		}
		if err := q.client.XDel(ctx, stream, job.StreamID).Err(); err != nil {
			return fmt.Errorf("failed to delete message: %w", err)
		}
	}

	job.Status = "completed"
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobKey, jobBytes, jobTTL)
	pipe.SRem(ctx, q.processingKey(queueName), jobID)
	pipe.SAdd(ctx, q.completedKey(queueName), jobID)
	pipe.Expire(ctx, q.completedKey(queueName), jobTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	metrics.ObserveJob(job.Type, "completed")
	return nil
}

// Nack records a failed attempt. Jobs with attempts remaining are
// requeued on a fresh stream entry; exhausted jobs move to the failed
// set.
func (q *RedisQueue) Nack(ctx context.Context, queueName, jobID string) error {
	job, jobKey, err := q.getStoredJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.StreamID != "" {
		stream := q.streamName(queueName)
		if err := q.client.XAck(ctx, stream, q.cfg.QueueGroup, job.StreamID).Err(); err != nil {
			return fmt.Errorf("failed to ack message: %w", err)
		}
		if err := q.client.XDel(ctx, stream, job.StreamID).Err(); err != nil {
			return fmt.Errorf("failed to delete message: %w", err)
		}
	}

	if job.Attempts < job.MaxAttempts {
		job.Status = "pending"
		job.StreamID = ""
		jobBytes, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		streamID, err := q.client.XAdd(ctx, &redis.XAddArgs{
			Stream: q.streamName(queueName),
			Values: map[string]interface{}{"job": string(jobBytes)},
		}).Result()
		if err != nil {
			return fmt.Errorf("failed to requeue job: %w", err)
		}
		job.StreamID = streamID
		if err := q.persistJob(ctx, job); err != nil {
			return err
		}

		pipe := q.client.Pipeline()
		pipe.SRem(ctx, q.processingKey(queueName), jobID)
		pipe.SAdd(ctx, q.pendingKey(queueName), jobID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to requeue job state: %w", err)
		}

		metrics.ObserveJob(job.Type, "requeued")
		return nil
	}

	job.Status = "failed"
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobKey, jobBytes, jobTTL)
	pipe.SRem(ctx, q.processingKey(queueName), jobID)
	pipe.SAdd(ctx, q.failedKey(queueName), jobID)
	pipe.Expire(ctx, q.failedKey(queueName), jobTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}

	metrics.ObserveJob(job.Type, "failed")
	return nil
}

// GetJob fetches persisted job details by job ID.
func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job, _, err := q.getStoredJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, redis.Nil) || strings.Contains(err.Error(), "redis: nil") {
			return nil, fmt.Errorf("job %s not found", jobID)
		}
		return nil, err
	}
	return job, nil
}

// GetJobStatus returns the current status of a job.
func (q *RedisQueue) GetJobStatus(ctx context.Context, jobID string) (string, error) {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// GetQueueStats returns pending/processing/completed/failed counts
// for the named queue.
func (q *RedisQueue) GetQueueStats(ctx context.Context, queueName string) (map[string]int64, error) {
	pipe := q.client.Pipeline()
	pending := pipe.SCard(ctx, q.pendingKey(queueName))
	processing := pipe.SCard(ctx, q.processingKey(queueName))
	completed := pipe.SCard(ctx, q.completedKey(queueName))
	failed := pipe.SCard(ctx, q.failedKey(queueName))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}

	return map[string]int64{
		"pending":    pending.Val(),
		"processing": processing.Val(),
		"completed":  completed.Val(),
		"failed":     failed.Val(),
	}, nil
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// GetClient returns the underlying Redis client so other components
// (rate limiters, health checks) can share the connection.
func (q *RedisQueue) GetClient() *redis.Client {
	return q.client
}

func (q *RedisQueue) ensureStream(ctx context.Context, queueName string) error {
	stream := q.streamName(queueName)

	q.mu.Lock()
	if _, ok := q.ensuredStreams[stream]; ok {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	err := q.client.XGroupCreateMkStream(ctx, stream, q.cfg.QueueGroup, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	q.mu.Lock()
	q.ensuredStreams[stream] = struct{}{}
	q.mu.Unlock()
	return nil
}

func (q *RedisQueue) claimStale(ctx context.Context, queueName string) (*Job, error) {
	stream := q.streamName(queueName)

	q.mu.Lock()
	startID := q.lastAutoClaimID[stream]
	if startID == "" {
		startID = "0-0"
	}
	q.mu.Unlock()

	messages, nextID, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    q.cfg.QueueGroup,
		Consumer: q.consumerName,
		MinIdle:  q.cfg.QueueVisibilityTimeout,
		Start:    startID,
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to auto-claim messages: %w", err)
	}

	q.mu.Lock()
	q.lastAutoClaimID[stream] = nextID
	q.mu.Unlock()

	if len(messages) == 0 {
		return nil, nil
	}
	return q.prepareMessage(ctx, queueName, messages[0])
}

func (q *RedisQueue) prepareMessage(ctx context.Context, queueName string, msg redis.XMessage) (*Job, error) {
	rawJob, ok := msg.Values["job"]
	if !ok {
		return nil, fmt.Errorf("stream message missing job payload")
	}

	var jobBytes []byte
	switch v := rawJob.(type) {
	case string:
		jobBytes = []byte(v)
	case []byte:
		jobBytes = v
	default:
		return nil, fmt.Errorf("unexpected job payload type %T", v)
	}

	var job Job
	if err := json.Unmarshal(jobBytes, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job payload: %w", err)
	}

	job.StreamID = msg.ID
	if job.Type == "" {
		job.Type = queueName
	}
	job.Attempts++
	job.Status = "processing"

	if err := q.persistJob(ctx, &job); err != nil {
		return nil, err
	}

	pipe := q.client.Pipeline()
	pipe.SAdd(ctx, q.processingKey(queueName), job.ID)
	pipe.SRem(ctx, q.pendingKey(queueName), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark job processing: %w", err)
	}

	return &job, nil
}

func (q *RedisQueue) persistJob(ctx context.Context, job *Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job for storage: %w", err)
	}
	if err := q.client.Set(ctx, q.jobKey(job.ID), jobBytes, jobTTL).Err(); err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}
	return nil
}

func (q *RedisQueue) getStoredJob(ctx context.Context, jobID string) (*Job, string, error) {
	jobKey := q.jobKey(jobID)
	jobBytes, err := q.client.Get(ctx, jobKey).Bytes()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get job details: %w", err)
	}

	var job Job
	if err := json.Unmarshal(jobBytes, &job); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, jobKey, nil
}

func (q *RedisQueue) streamName(jobType string) string {
	return fmt.Sprintf("%s:%s", q.cfg.QueueStreamPrefix, jobType)
}

func (q *RedisQueue) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func (q *RedisQueue) pendingKey(queueName string) string {
	return fmt.Sprintf("queue:%s:pending", queueName)
}

func (q *RedisQueue) processingKey(queueName string) string {
	return fmt.Sprintf("queue:%s:processing", queueName)
}

func (q *RedisQueue) completedKey(queueName string) string {
	return fmt.Sprintf("queue:%s:completed", queueName)
}

func (q *RedisQueue) failedKey(queueName string) string {
	return fmt.Sprintf("queue:%s:failed", queueName)
}
