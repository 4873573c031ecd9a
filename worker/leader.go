package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skyfare/skyfare/pkg/logger"
)

// LeaderElector manages distributed leader election using Redis.
// Only the leader instance fires scheduled sweeps, so multiple
// deployments never enqueue duplicate work.
type LeaderElector struct {
	redisClient    *redis.Client
	lockKey        string
	lockTTL        time.Duration
	renewInterval  time.Duration
	instanceID     string
	isLeader       atomic.Bool
	stopChan       chan struct{}
	wg             sync.WaitGroup
	onBecomeLeader func()
	onLoseLeader   func()
}

// NewLeaderElector creates a new leader elector. The callbacks may be
// nil; they fire on leadership transitions.
func NewLeaderElector(
	redisClient *redis.Client,
	lockKey string,
	lockTTL time.Duration,
	renewInterval time.Duration,
	onBecomeLeader func(),
	onLoseLeader func(),
) *LeaderElector {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "worker"
	}
	instanceID := fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano())

	return &LeaderElector{
		redisClient:    redisClient,
		lockKey:        lockKey,
		lockTTL:        lockTTL,
		renewInterval:  renewInterval,
		instanceID:     instanceID,
		stopChan:       make(chan struct{}),
		onBecomeLeader: onBecomeLeader,
		onLoseLeader:   onLoseLeader,
	}
}

// Start begins the election loop in a goroutine.
func (le *LeaderElector) Start() {
	le.wg.Add(1)
	go le.electionLoop()
	logger.Info("leader election started",
		"instance", le.instanceID, "key", le.lockKey,
		"ttl", le.lockTTL, "renew", le.renewInterval)
}

// Stop releases leadership if held and stops the election loop.
func (le *LeaderElector) Stop() {
	close(le.stopChan)
	le.wg.Wait()

	if le.isLeader.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		le.releaseLock(ctx)
		le.isLeader.Store(false)
	}
	logger.Info("leader election stopped", "instance", le.instanceID)
}

// IsLeader returns whether this instance currently holds leadership.
func (le *LeaderElector) IsLeader() bool {
	return le.isLeader.Load()
}

// InstanceID returns the unique identifier for this instance.
func (le *LeaderElector) InstanceID() string {
	return le.instanceID
}

func (le *LeaderElector) electionLoop() {
	defer le.wg.Done()

	le.tryMaintainLeadership()

	ticker := time.NewTicker(le.renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-le.stopChan:
			return
		case <-ticker.C:
			le.tryMaintainLeadership()
		}
	}
}

func (le *LeaderElector) tryMaintainLeadership() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if le.isLeader.Load() {
		if !le.renewLock(ctx) {
			logger.Warn("lost leadership, failed to renew lock", "instance", le.instanceID)
			le.isLeader.Store(false)
			if le.onLoseLeader != nil {
				le.onLoseLeader()
			}
		}
	} else {
		if le.tryAcquireLock(ctx) {
			logger.Info("acquired leadership", "instance", le.instanceID)
			le.isLeader.Store(true)
			if le.onBecomeLeader != nil {
				le.onBecomeLeader()
			}
		}
	}
}

func (le *LeaderElector) tryAcquireLock(ctx context.Context) bool {
	result, err := le.redisClient.SetNX(ctx, le.lockKey, le.instanceID, le.lockTTL).Result()
	if err != nil {
		logger.Error(err, "error acquiring leader lock")
		return false
	}
	return result
}

// renewScript renews the lock only when this instance still owns it.
var renewScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

func (le *LeaderElector) renewLock(ctx context.Context) bool {
	result, err := renewScript.Run(ctx, le.redisClient,
		[]string{le.lockKey},
		le.instanceID,
		le.lockTTL.Milliseconds(),
	).Int()
	if err != nil {
		logger.Error(err, "error renewing leader lock")
		return false
	}
	return result == 1
}

// releaseScript releases the lock only when this instance owns it, so
// a lock taken over by another instance is never deleted.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

func (le *LeaderElector) releaseLock(ctx context.Context) {
	result, err := releaseScript.Run(ctx, le.redisClient,
		[]string{le.lockKey},
		le.instanceID,
	).Int()
	if err != nil {
		logger.Error(err, "error releasing leader lock")
	} else if result == 1 {
		logger.Info("released leader lock", "instance", le.instanceID)
	}
}
