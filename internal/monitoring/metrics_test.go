package monitoring_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-tracker/backend/internal/monitoring"
)

type envelope struct {
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	monitoring.Reset()
	t.Cleanup(monitoring.Reset)

	router := gin.New()
	router.Use(monitoring.MetricsMiddleware())
	router.GET("/health", monitoring.HealthHandler())
	router.GET("/health/db", monitoring.DatabaseHealthHandler("database"))
	router.GET("/ready", monitoring.ReadinessHandler())
	router.GET("/live", monitoring.LivenessHandler())
	router.GET("/metrics", monitoring.MetricsHandler())
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	return router
}

func get(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealthHandler(t *testing.T) {
	router := setupRouter(t)

	w, body := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"OK","data":null}`, w.Body.String())
	assert.Equal(t, "OK", body.Message)
}

func TestDatabaseHealthHandler(t *testing.T) {
	router := setupRouter(t)

	_, body := get(t, router, "/health/db")
	assert.Equal(t, false, body.Data["connected"])

	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error { return nil })
	_, body = get(t, router, "/health/db")
	assert.Equal(t, true, body.Data["connected"])

	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error { return errors.New("connection refused") })
	w, body := get(t, router, "/health/db")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body.Data["connected"])
	assert.Equal(t, "connection refused", body.Data["error"])
}

func TestReadinessHandler_RunsChecksOnEveryRequest(t *testing.T) {
	router := setupRouter(t)

	var failing bool
	calls := 0
	monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
		calls++
		if failing {
			return errors.New("down")
		}
		return nil
	})

	w, body := get(t, router, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body.Data["status"])

	failing = true
	w, body = get(t, router, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not ready", body.Data["status"])
	assert.Equal(t, 2, calls)
}

func TestMetricsHandler(t *testing.T) {
	router := setupRouter(t)

	monitoring.RegisterStatsProvider("cache", func() interface{} {
		return map[string]int{"hits": 3}
	})
	monitoring.RecordCompensationFailure("add pending task")
	monitoring.RecordCompensationFailure("add pending task")

	get(t, router, "/boom")
	get(t, router, "/live")

	m := monitoring.GetMetrics()
	assert.EqualValues(t, 2, m.RequestCount)
	assert.EqualValues(t, 1, m.ErrorCount)
	assert.EqualValues(t, 2, m.CompensationFailures["add pending task"])
	assert.EqualValues(t, 1, m.Endpoints["GET /boom"])

	w, body := get(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)

	components, ok := body.Data["components"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"hits": float64(3)}, components["cache"])

	application := body.Data["application"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"add pending task": float64(2)}, application["compensation_failures"])
}
