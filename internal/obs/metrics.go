package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by force, method and outcome.",
		},
		[]string{"force", "method", "outcome"},
	)

	guardDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_guard_denials_total",
			Help: "Authorization guard denials by fault code.",
		},
		[]string{"code"},
	)

	sessionsSweptTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_sessions_swept_total",
			Help: "Expired sessions removed by the background sweep.",
		},
		[]string{"force"},
	)
)

var initOnce sync.Once

// Init registers metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			loginsTotal, guardDenialsTotal, sessionsSweptTotal,
		)
	})
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// LoginAttempt records one login attempt outcome.
func LoginAttempt(force, method, outcome string) {
	loginsTotal.WithLabelValues(force, method, outcome).Inc()
}

// GuardDenial records one guard rejection by fault code.
func GuardDenial(code string) {
	guardDenialsTotal.WithLabelValues(code).Inc()
}

// SessionsSwept records sessions removed by a sweep for one force.
func SessionsSwept(force string, n int64) {
	sessionsSweptTotal.WithLabelValues(force).Add(float64(n))
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for the metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
