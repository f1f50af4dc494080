package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/sessiond/internal/adapters/httpapi"
	"github.com/aretw0/sessiond/internal/adapters/memory"
	"github.com/aretw0/sessiond/internal/config"
	"github.com/aretw0/sessiond/internal/metrics"
	"github.com/aretw0/sessiond/pkg/domain"
	"github.com/aretw0/sessiond/pkg/manager"
	"github.com/aretw0/sessiond/pkg/monitor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAPI(t *testing.T) (http.Handler, *memory.Store, time.Time) {
	t.Helper()

	now := time.UnixMilli(10_000_000_000)
	cfg := config.Default()
	cfg.MaxAge = time.Hour

	registry := prometheus.NewRegistry()
	collectors := metrics.New(registry)

	store := memory.NewStore()
	mgr := manager.New(store, cfg,
		manager.WithClock(func() time.Time { return now }),
		manager.WithMetrics(collectors),
	)
	require.NoError(t, mgr.Initialize(context.Background()))

	mon := monitor.New(mgr, monitor.WithMetrics(collectors))

	handler := httpapi.NewHandler(mgr, mon, httpapi.WithGatherer(registry))
	return handler, store, now
}

func seed(t *testing.T, store *memory.Store, sessionID, userID string, lastAccess int64) {
	t.Helper()
	rec := &domain.Record{SessionID: sessionID, UserID: userID, LastAccess: lastAccess}
	require.NoError(t, store.Save(context.Background(), sessionID, rec, 0))
}

func do(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestAPI_Health(t *testing.T) {
	handler, _, _ := setupAPI(t)

	rr := do(t, handler, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestAPI_Stats(t *testing.T) {
	handler, store, now := setupAPI(t)

	seed(t, store, "a", "u1", now.UnixMilli()-1000)
	seed(t, store, "b", "u1", now.Add(-2*time.Hour).UnixMilli())

	rr := do(t, handler, http.MethodGet, "/v1/sessions/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Store domain.StatsSnapshot `json:"store"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Store.TotalSessions)
	assert.Equal(t, 1, body.Store.ActiveSessions)
	assert.Equal(t, 1, body.Store.ExpiredSessions)
}

func TestAPI_UserCountAndInvalidate(t *testing.T) {
	handler, store, now := setupAPI(t)

	seed(t, store, "a1", "alice", now.UnixMilli())
	seed(t, store, "a2", "alice", now.UnixMilli())
	seed(t, store, "b1", "bob", now.UnixMilli())

	rr := do(t, handler, http.MethodGet, "/v1/users/alice/sessions/count")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"userId":"alice","count":2}`, rr.Body.String())

	rr = do(t, handler, http.MethodDelete, "/v1/users/alice/sessions")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, handler, http.MethodGet, "/v1/users/alice/sessions/count")
	assert.JSONEq(t, `{"userId":"alice","count":0}`, rr.Body.String())

	// Bob is untouched.
	rr = do(t, handler, http.MethodGet, "/v1/users/bob/sessions/count")
	assert.JSONEq(t, `{"userId":"bob","count":1}`, rr.Body.String())
}

func TestAPI_Cleanup(t *testing.T) {
	handler, store, now := setupAPI(t)

	seed(t, store, "dead", "u1", now.Add(-3*time.Hour).UnixMilli())
	seed(t, store, "live", "u1", now.UnixMilli())

	rr := do(t, handler, http.MethodPost, "/v1/cleanup")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"cleanedCount":1}`, rr.Body.String())
}

func TestAPI_PrometheusExposition(t *testing.T) {
	handler, _, _ := setupAPI(t)

	// Run one cleanup so counters have been written.
	do(t, handler, http.MethodPost, "/v1/cleanup")

	rr := do(t, handler, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "sessiond_cleanup_runs_total")
}

func TestAPI_Report(t *testing.T) {
	handler, _, _ := setupAPI(t)

	rr := do(t, handler, http.MethodGet, "/v1/monitor/report")
	require.Equal(t, http.StatusOK, rr.Code)

	var report monitor.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.NotEmpty(t, report.Recommendations)
}
