// Package metrics exposes the portal's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DocumentsUploaded counts documents accepted for signing.
	DocumentsUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_uploaded_total",
		Help: "Documents accepted for signing.",
	})

	// DocumentsSigned counts documents stamped and marked signed.
	DocumentsSigned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_signed_total",
		Help: "Documents stamped and marked signed.",
	})

	// SigningFailures counts signing attempts that never reached the signed
	// state, labeled by the pipeline stage that failed.
	SigningFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signing_failures_total",
		Help: "Signing attempts that failed, by pipeline stage.",
	}, []string{"stage"})

	// IntegrityMismatches counts stored documents whose fingerprint no
	// longer matches the audit record.
	IntegrityMismatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "integrity_mismatches_total",
		Help: "Stored documents diverging from their audit record.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests processed, by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency, by method, route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Init registers all collectors with the default registry. Call once at
// process start.
func Init() {
	prometheus.MustRegister(
		DocumentsUploaded,
		DocumentsSigned,
		SigningFailures,
		IntegrityMismatches,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latencies per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}
