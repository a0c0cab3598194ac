// Package metrics provides Prometheus instrumentation for the compliance
// engine.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pld",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pld",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// OperationsScoredTotal counts scored operations by resulting tier.
	OperationsScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pld",
			Name:      "operations_scored_total",
			Help:      "Operations scored by resulting risk tier.",
		},
		[]string{"tier"},
	)

	// TransitionsTotal counts pipeline transitions by action and outcome.
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pld",
			Name:      "status_transitions_total",
			Help:      "Status pipeline transitions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	// AccumulationStatusTotal counts sweep results by monitoring status.
	AccumulationStatusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pld",
			Name:      "accumulation_status_total",
			Help:      "Accumulation sweep results by monitoring status.",
		},
		[]string{"status"},
	)

	// SweepDuration observes the nightly accumulation sweep duration.
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pld",
			Name:      "accumulation_sweep_duration_seconds",
			Help:      "Duration of full accumulation sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		OperationsScoredTotal,
		TransitionsTotal,
		AccumulationStatusTotal,
		SweepDuration,
	)
}

// Handler exposes the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware instruments handlers with request counters and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		// Label with the route template, not the raw path, to keep
		// cardinality bounded on parameterized routes.
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack passes connection takeover through to the underlying writer so
// WebSocket upgrades survive instrumentation.
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
