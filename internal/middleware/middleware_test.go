package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*gin.Engine, *PrometheusMiddleware, *prometheus.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	r := gin.New()
	r.Use(NewRequestLogger().Handler())

	pm := NewPrometheusMiddleware("test", reg)
	r.Use(pm.Handler())
	return r, pm, reg
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestPrometheusMiddleware_BasicMetrics(t *testing.T) {
	r, pm, reg := newRouter(t)
	r.GET("/ok", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/error", func(c *gin.Context) { c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"}) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ok").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodGet, "/error").Code)

	families, err := reg.Gather()
	require.NoError(t, err)

	var durationFound bool
	for _, mf := range families {
		if mf.GetName() == "voxelworld_test_http_request_duration_seconds" {
			durationFound = true
			// Две разные комбинации меток: /ok 200 и /error 500
			assert.Len(t, mf.GetMetric(), 2)
		}
	}
	assert.True(t, durationFound, "duration metric not found")

	assert.Equal(t, float64(1), testutil.ToFloat64(pm.reqErrors.WithLabelValues("GET", "/error", "500")))
	assert.Equal(t, float64(0), testutil.ToFloat64(pm.reqInflight))
}

func TestPrometheusMiddleware_UnmatchedPath(t *testing.T) {
	r, pm, _ := newRouter(t)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/random/garbage/123").Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.reqErrors.WithLabelValues("GET", "unmatched", "404")))
}

func TestPrometheusMiddleware_Inflight(t *testing.T) {
	r, pm, _ := newRouter(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	r.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.Status(http.StatusNoContent)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		serve(r, http.MethodGet, "/slow")
	}()

	<-entered
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.reqInflight))

	close(release)
	<-done
	assert.Equal(t, float64(0), testutil.ToFloat64(pm.reqInflight))
}

func TestPrometheusMiddleware_MetricsEndpoint(t *testing.T) {
	r, pm, _ := newRouter(t)
	pm.RegisterMetricsEndpoint(r)
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/ok")
	w := serve(r, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "voxelworld_test_http_request_duration_seconds"))
}

func TestRequestLogger_TraceID(t *testing.T) {
	r, _, _ := newRouter(t)

	var captured string
	r.GET("/trace", func(c *gin.Context) {
		v, exists := c.Get(TraceIDKey)
		require.True(t, exists, "trace_id should be set in context")
		captured = v.(string)
		c.JSON(http.StatusOK, gin.H{"trace_id": captured})
	})

	w := serve(r, http.MethodGet, "/trace")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, captured)
	assert.Equal(t, captured, w.Header().Get("X-Trace-Id"))
	assert.Contains(t, w.Body.String(), captured)
}
