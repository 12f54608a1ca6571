// Package metrics collects Prometheus metrics for the HTTP transport and the
// bridge stages.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "tensor_bridge"

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.SummaryVec

	bridgeResults  *prometheus.CounterVec
	bridgeDuration *prometheus.HistogramVec
	stageDuration  *prometheus.HistogramVec
	poolSize       prometheus.Gauge
}

func New(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		logger:   logger,
		registry: reg,
		requestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   latencyBuckets,
		}, []string{"method", "path"}),
		responseSize: factory.NewSummaryVec(prometheus.SummaryOpts{
			Namespace:  namespace,
			Subsystem:  "http",
			Name:       "response_size_bytes",
			Help:       "HTTP response size in bytes",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"method", "path"}),
		bridgeResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "responses_total",
			Help:      "Bridge responses by method and result code",
		}, []string{"method", "result"}),
		bridgeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "request_duration_seconds",
			Help:      "End to end bridge request duration in seconds",
			Buckets:   latencyBuckets,
		}, []string{"method"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each game_detect stage in seconds",
			Buckets:   latencyBuckets,
		}, []string{"stage"}),
		poolSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "interpreters",
			Help:      "Number of loaded interpreters",
		}),
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObserveResponse(method, result string, d time.Duration) {
	m.bridgeResults.WithLabelValues(method, result).Inc()
	m.bridgeDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) SetPoolSize(n int) {
	m.poolSize.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records per-route HTTP metrics. Routes are labelled by their
// pattern so path parameters do not create new series.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := c.Writer.Status()
		duration := time.Since(start)

		m.requestCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
		if size := c.Writer.Size(); size > 0 {
			m.responseSize.WithLabelValues(method, path).Observe(float64(size))
		}

		m.logger.Debug("request metrics collected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		)
	}
}
