package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveResponse(t *testing.T) {
	m := New(nil)
	m.ObserveResponse("game_detect", "OK", 10*time.Millisecond)
	m.ObserveResponse("game_detect", "OK", 12*time.Millisecond)
	m.ObserveResponse("game_detect", "DECODE_ERROR", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bridgeResults.WithLabelValues("game_detect", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bridgeResults.WithLabelValues("game_detect", "DECODE_ERROR")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.bridgeDuration))
}

func TestObserveStage(t *testing.T) {
	m := New(nil)
	for _, s := range []string{"decoding", "processing", "invoking", "packing"} {
		m.ObserveStage(s, time.Millisecond)
	}
	assert.Equal(t, 4, testutil.CollectAndCount(m.stageDuration))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(nil)
	m.SetPoolSize(3)

	r := gin.New()
	r.Use(m.Middleware())
	r.POST("/channel/:method", func(c *gin.Context) { c.String(http.StatusNotImplemented, "nope") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, method := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/channel/"+method, nil))
		require.Equal(t, http.StatusNotImplemented, w.Code)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.requestCounter.WithLabelValues("POST", "/channel/:method", "501")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), "tensor_bridge_http_requests_total")
	assert.Contains(t, string(body), "tensor_bridge_model_interpreters 3")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(nil), New(nil)
	a.ObserveResponse("game_detect", "OK", 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.bridgeResults.WithLabelValues("game_detect", "OK")))
}
