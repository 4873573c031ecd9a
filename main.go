package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skyfare/skyfare/api"
	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/db"
	"github.com/skyfare/skyfare/dispatch"
	"github.com/skyfare/skyfare/pkg/buildinfo"
	"github.com/skyfare/skyfare/pkg/cache"
	"github.com/skyfare/skyfare/pkg/health"
	"github.com/skyfare/skyfare/pkg/logger"
	"github.com/skyfare/skyfare/pkg/notify"
	"github.com/skyfare/skyfare/pkg/worker_registry"
	"github.com/skyfare/skyfare/queue"
	"github.com/skyfare/skyfare/sources"
	"github.com/skyfare/skyfare/worker"
)

// browserSources run a full Chrome scenario and need the long L3
// dispatch deadline.
var browserSources = []string{
	"ana", "qatar_airways", "turkish_airlines", "af_klm",
	"air_premia", "air_seoul", "google_flights",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(logger.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
	})
	logger.Info("starting skyfare",
		"version", buildinfo.Version, "commit", buildinfo.Commit,
		"environment", cfg.Environment)

	postgresDB, err := db.NewPostgresDB(cfg.PostgresConfig)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer postgresDB.Close()

	if cfg.InitSchema {
		if err := postgresDB.InitSchema(); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
	}
	if cfg.SeedReference {
		if err := postgresDB.SeedReferenceData(); err != nil {
			log.Fatalf("Failed to seed reference data: %v", err)
		}
	}

	q, err := queue.NewRedisQueue(cfg.RedisConfig, cfg.WorkerConfig.MaxRetries)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer q.Close()
	redisClient := q.GetClient()

	registry := crawler.NewRegistry()
	sources.RegisterAll(registry, cfg.CrawlerConfig)
	logger.Info("registered fare sources", "count", len(registry.Names()))

	sourceTimeouts := make(map[string]time.Duration, len(browserSources))
	for _, name := range browserSources {
		sourceTimeouts[name] = cfg.CrawlerConfig.L3Timeout
	}

	notifier := notify.NewClient(cfg.NTFYConfig)

	dispatcher := dispatch.New(registry, dispatch.Options{
		DefaultTimeout:   cfg.CrawlerConfig.L2Timeout,
		SourceTimeouts:   sourceTimeouts,
		RateLimits:       cfg.CrawlerConfig.SourceRateLimits,
		DefaultRateLimit: cfg.CrawlerConfig.DefaultRateLimit,
		Redis:            redisClient,
		BreakerThreshold: 5,
		BreakerCooldown:  time.Minute,
		Cache:            cache.NewRedisCache(redisClient, "skyfare"),
		Notifier:         notifier,
	})

	store := db.NewFlightStore(postgresDB)

	leader := worker.NewLeaderElector(redisClient, "skyfare:scheduler:leader",
		30*time.Second, 10*time.Second, nil, nil)
	leader.Start()
	defer leader.Stop()

	scheduler := worker.NewScheduler(q, postgresDB, leader)
	scheduler.SetNotifier(notifier)
	manager := worker.NewManager(q, dispatcher, store, registry.Names(), cfg.WorkerConfig, scheduler)

	workers := worker_registry.New(redisClient, "skyfare")
	heartbeatStop := make(chan struct{})

	if cfg.WorkerEnabled {
		manager.Start()
		defer manager.Stop()
		go publishHeartbeats(workers, cfg, len(registry.Names()), heartbeatStop)
	}

	checker := health.NewHealthChecker(buildinfo.Version)
	checker.AddChecker(&health.PostgresChecker{DB: postgresDB, Name: "postgres"})
	checker.AddChecker(&health.RedisChecker{Client: redisClient, Name: "redis"})
	checker.AddChecker(&health.QueueChecker{Queue: q, Name: "queue"})

	var srv *http.Server
	if cfg.APIEnabled {
		if cfg.Environment == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.New()
		api.RegisterRoutes(router, checker, q, workers)

		srv = &http.Server{
			Addr:    cfg.HTTPBindAddr + ":" + cfg.Port,
			Handler: router,
		}
		go func() {
			logger.Info("ops server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
	close(heartbeatStop)

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.WorkerConfig.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error(err, "server forced to shut down")
		}
	}
}

// publishHeartbeats announces this process in the worker registry every
// 15 seconds until stop closes.
func publishHeartbeats(workers *worker_registry.Registry, cfg *config.Config, sourceCount int, stop <-chan struct{}) {
	hostname, _ := os.Hostname()
	id := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	startedAt := time.Now().UTC()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		hb := worker_registry.Heartbeat{
			ID:          id,
			Hostname:    hostname,
			Status:      "active",
			Concurrency: cfg.WorkerConfig.Concurrency,
			Sources:     sourceCount,
			StartedAt:   startedAt,
			Version:     buildinfo.Version,
		}
		if err := workers.Publish(context.Background(), hb, 45*time.Second); err != nil {
			logger.Warn("failed to publish worker heartbeat", "error", err)
		}

		select {
		case <-ticker.C:
		case <-stop:
			return
		}
	}
}
