// Package metrics exposes Prometheus instruments for the crawl pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crawlTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyfare",
		Name:      "crawl_total",
		Help:      "Crawl attempts by source and outcome.",
	}, []string{"source", "outcome"})

	crawlDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skyfare",
		Name:      "crawl_duration_seconds",
		Help:      "Wall time of crawl attempts by source.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"source"})

	flightsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyfare",
		Name:      "flights_merged_total",
		Help:      "Flights emitted by the merger.",
	})

	flightsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skyfare",
		Name:      "flights_stored_total",
		Help:      "Flight rows written to the database.",
	})

	queueJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skyfare",
		Name:      "queue_jobs_total",
		Help:      "Queue jobs by type and outcome.",
	}, []string{"type", "outcome"})
)

// ObserveCrawl records one crawl attempt.
func ObserveCrawl(source string, success bool, elapsed time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	crawlTotal.WithLabelValues(source, outcome).Inc()
	crawlDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// AddMerged records flights emitted by a merge.
func AddMerged(n int) {
	flightsMerged.Add(float64(n))
}

// AddStored records flight rows persisted.
func AddStored(n int) {
	flightsStored.Add(float64(n))
}

// ObserveJob records one queue job transition: enqueued, completed,
// requeued or failed.
func ObserveJob(jobType, outcome string) {
	queueJobs.WithLabelValues(jobType, outcome).Inc()
}
