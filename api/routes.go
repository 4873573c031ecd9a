// Package api is the operational HTTP surface of a worker process:
// health probes, queue depth, Prometheus metrics. Fare search is not
// served over HTTP; searches enter through the queue or the CLI.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skyfare/skyfare/pkg/buildinfo"
	"github.com/skyfare/skyfare/pkg/health"
	"github.com/skyfare/skyfare/pkg/middleware"
	"github.com/skyfare/skyfare/pkg/worker_registry"
	"github.com/skyfare/skyfare/queue"
	"github.com/skyfare/skyfare/worker"
)

// RegisterRoutes wires the operational endpoints onto router.
func RegisterRoutes(router *gin.Engine, checker *health.HealthChecker, q queue.Queue, workers *worker_registry.Registry) {
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())

	router.GET("/healthz", healthHandler(checker))
	router.GET("/readyz", readyHandler(checker))
	router.GET("/livez", liveHandler(checker))
	router.GET("/version", versionHandler)
	router.GET("/queue/stats", queueStatsHandler(q))
	router.GET("/workers", workersHandler(workers))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func healthHandler(checker *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := checker.CheckHealth(c.Request.Context())
		c.JSON(statusCode(report), report)
	}
}

func readyHandler(checker *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := checker.CheckReadiness(c.Request.Context())
		c.JSON(statusCode(report), report)
	}
}

func liveHandler(checker *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := checker.CheckLiveness(c.Request.Context())
		c.JSON(statusCode(report), report)
	}
}

func statusCode(report health.Report) int {
	if report.Status == health.StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func versionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, buildinfo.Info())
}

func workersHandler(workers *worker_registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, err := workers.ListActive(c.Request.Context(), time.Minute)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if active == nil {
			active = []worker_registry.Heartbeat{}
		}
		c.JSON(http.StatusOK, gin.H{"workers": active, "count": len(active)})
	}
}

func queueStatsHandler(q queue.Queue) gin.HandlerFunc {
	queues := []string{worker.QueueCrawlSingle, worker.QueueCrawlParallel, worker.QueueMergeStore}
	return func(c *gin.Context) {
		out := gin.H{}
		for _, name := range queues {
			stats, err := q.GetQueueStats(c.Request.Context(), name)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			out[name] = stats
		}
		c.JSON(http.StatusOK, out)
	}
}
