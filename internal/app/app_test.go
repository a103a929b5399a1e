package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/faq-linebot-go/internal/config"
	"github.com/garyellow/faq-linebot-go/internal/faq"
	"github.com/garyellow/faq-linebot-go/internal/logger"
	"github.com/garyellow/faq-linebot-go/internal/metrics"
	"github.com/garyellow/faq-linebot-go/internal/warmup"
)

// setupTestApp creates a minimal Application for testing endpoints.
func setupTestApp(t *testing.T, grace time.Duration) *Application {
	t.Helper()

	registry := prometheus.NewRegistry()
	return &Application{
		cfg:            &config.Config{MetricsUsername: "prometheus"},
		logger:         logger.NewWithWriter("error", io.Discard),
		metrics:        metrics.New(registry),
		registry:       registry,
		readinessState: warmup.NewReadinessState(grace),
	}
}

func testMatcher() *faq.Matcher {
	return faq.New([]faq.Entry{{Question: "營業時間", Answer: "9:00-18:00"}}, nil, faq.BigramTokenizer{})
}

func get(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, 0)

	router := gin.New()
	router.GET("/livez", app.livenessCheck)

	w, body := get(t, router, "/livez")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", body["status"])
}

func TestReadinessCheck_IndexBuilding(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, time.Hour)

	router := gin.New()
	router.GET("/readyz", app.readinessCheck)

	w, body := get(t, router, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "index build in progress", body["reason"])
	assert.Contains(t, body, "progress")
}

func TestReadinessCheck_Ready(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, time.Hour)
	require.True(t, app.readinessState.Publish(testMatcher()))

	router := gin.New()
	router.GET("/readyz", app.readinessCheck)

	w, body := get(t, router, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])
	index, ok := body["index"].(map[string]any)
	require.True(t, ok, "expected index stats, got %v", body)
	assert.Len(t, index, len(mustJSONMap(t, testMatcher().Stats())))
}

func TestReadinessCheck_DegradedAfterGrace(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, time.Nanosecond)
	time.Sleep(time.Millisecond)

	router := gin.New()
	router.GET("/readyz", app.readinessCheck)

	w, body := get(t, router, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])
	assert.Contains(t, body["degraded"], "fallback")
}

func TestReadinessMiddleware(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, time.Hour)

	router := gin.New()
	router.POST("/callback", app.readinessMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/callback", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := post()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "10", w.Header().Get("Retry-After"))

	app.readinessState.Publish(testMatcher())
	assert.Equal(t, http.StatusOK, post().Code)
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, 0)

	router := gin.New()
	router.Use(loggingMiddleware(app.logger))
	router.GET("/livez", app.livenessCheck)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("X-Correlation-Id", "corr-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "corr-1", w.Header().Get("X-Request-Id"))

	w, _ = get(t, router, "/livez")
	assert.Len(t, w.Header().Get("X-Request-Id"), 36)
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, 0)

	router := gin.New()
	router.Use(securityHeadersMiddleware())
	router.GET("/", app.index)

	w, body := get(t, router, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, serviceName, body["service"])
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, 0)
	app.cfg.MetricsPassword = "secret"
	app.metrics.RecordMatch(metrics.OutcomeMatched, 0.9, 0.001)

	router := gin.New()
	router.GET("/metrics",
		metricsAuthMiddleware(app.cfg.MetricsUsername, app.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", basicAuth("prometheus", "secret"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "faq_matches_total")
}

func mustJSONMap(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}
