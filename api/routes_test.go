package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/pkg/health"
	"github.com/skyfare/skyfare/pkg/worker_registry"
	"github.com/skyfare/skyfare/queue"
)

type stubQueue struct {
	queue.Queue
	stats map[string]int64
}

func (q *stubQueue) GetQueueStats(context.Context, string) (map[string]int64, error) {
	return q.stats, nil
}

type downChecker struct{}

func (downChecker) Check(context.Context) health.Check {
	return health.Check{Name: "postgres", Status: health.StatusDown}
}

func newTestRouter(t *testing.T, checker *health.HealthChecker) (*gin.Engine, *worker_registry.Registry) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	workers := worker_registry.New(client, "test")

	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router, checker, &stubQueue{stats: map[string]int64{"pending": 2}}, workers)
	return router, workers
}

func TestHealthzReportsAggregate(t *testing.T) {
	checker := health.NewHealthChecker("test")
	checker.AddChecker(downChecker{})
	router, _ := newTestRouter(t, checker)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var report health.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, health.StatusDown, report.Status)
	assert.Contains(t, report.Checks, "postgres")
}

func TestLivezAlwaysUp(t *testing.T) {
	checker := health.NewHealthChecker("test")
	checker.AddChecker(downChecker{})
	router, _ := newTestRouter(t, checker)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQueueStats(t *testing.T) {
	router, _ := newTestRouter(t, health.NewHealthChecker("test"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/queue/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Contains(t, out, "crawl_single")
	assert.EqualValues(t, 2, out["crawl_single"]["pending"])
	assert.Contains(t, out, "merge_and_store")
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, health.NewHealthChecker("test"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestVersionEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, health.NewHealthChecker("test"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "commit")
}

func TestWorkersEndpoint(t *testing.T) {
	router, workers := newTestRouter(t, health.NewHealthChecker("test"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workers", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Count   int                        `json:"count"`
		Workers []worker_registry.Heartbeat `json:"workers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Zero(t, out.Count)

	require.NoError(t, workers.Publish(context.Background(), worker_registry.Heartbeat{
		ID:          "crawl-a-1",
		Hostname:    "crawl-a",
		Concurrency: 5,
	}, 45*time.Second))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workers", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "crawl-a-1", out.Workers[0].ID)
}
