package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions HTTP metrics by logical endpoint name rather than
// the raw URL path.
const labelHandler = "handler"

// Query outcome label values.
const (
	outcomeOK      = "ok"
	outcomeTimeout = "timeout"
	outcomeError   = "error"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// queryRequestsTotal counts completed /api/query requests by outcome.
	queryRequestsTotal *prometheus.CounterVec

	// queryDurationSeconds records end-to-end pipeline latency by outcome.
	queryDurationSeconds *prometheus.HistogramVec

	// queriesInFlight is the number of pipeline queries currently running.
	queriesInFlight prometheus.Gauge

	// evalVerdictsTotal counts /api/eval results by verdict
	// (pass, fail, unexpected, error).
	evalVerdictsTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests by method, handler and code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// rateLimitedTotal counts requests rejected by the per-IP limiter.
	rateLimitedTotal *prometheus.CounterVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		queryRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of /api/query requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		queryDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of pipeline queries from retrieval to formatted answer.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 180},
		}, []string{"outcome"}),

		queriesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "docrag",
			Subsystem: "query",
			Name:      "in_flight",
			Help:      "Number of pipeline queries currently running.",
		}),

		evalVerdictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "eval",
			Name:      "verdicts_total",
			Help:      "Total number of /api/eval results, partitioned by verdict.",
		}, []string{"verdict"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		rateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected with 429, partitioned by path.",
		}, []string{"path"}),
	}
}

// instrument records request count and latency for the named handler.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
	})
}

// outcomeOf maps a pipeline error to its metric label.
func outcomeOf(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return outcomeTimeout
	default:
		return outcomeError
	}
}
