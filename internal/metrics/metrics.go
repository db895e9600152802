// Package metrics provides Prometheus instrumentation for the Convert API
// client and the inspector server.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Results recorded for API calls.
const (
	ResultOK             = "ok"
	ResultEmpty          = "empty"
	ResultAPIError       = "api_error"
	ResultTransportError = "transport_error"
	ResultUnexpected     = "unexpected"
)

var (
	// APIRequestsTotal counts Convert API calls by operation and result.
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convertapi",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Convert API requests by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// APIRequestDuration observes Convert API latency by operation.
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "convertapi",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Convert API request duration in seconds, including retries.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// APIRetriesTotal counts attempts beyond the first.
	APIRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convertapi",
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Convert API request retries by operation.",
		},
		[]string{"operation"},
	)

	// CookieDecodesTotal counts cookie decodes by mode and result.
	CookieDecodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convertapi",
			Name:      "cookie_decodes_total",
			Help:      "Cookie decodes by mode (field, full) and result.",
		},
		[]string{"mode", "result"},
	)

	// BreakerTransitionsTotal counts upstream circuit breaker state changes.
	BreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convertapi",
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Upstream circuit breaker state transitions by from-state and to-state.",
		},
		[]string{"from_state", "to_state"},
	)

	// HTTPRequestsTotal counts inspector server requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "convertapi",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes inspector server latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "convertapi",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal,
		APIRequestDuration,
		APIRetriesTotal,
		CookieDecodesTotal,
		BreakerTransitionsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// ObserveAPI starts timing an API operation. The returned function records
// the outcome and must be called exactly once.
func ObserveAPI(operation string) func(result string) {
	start := time.Now()
	return func(result string) {
		APIRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		APIRequestsTotal.WithLabelValues(operation, result).Inc()
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern keeps label cardinality bounded
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
