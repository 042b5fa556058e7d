// Package obs holds the Prometheus collectors of the gateway and the
// middleware that feeds the HTTP ones.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "complaintdesk_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaintdesk_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "complaintdesk_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	remoteCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaintdesk_remote_calls_total",
			Help: "Calls to the remote API by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	remoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "complaintdesk_remote_call_duration_seconds",
			Help:    "Remote API call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	navigationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaintdesk_navigation_decisions_total",
			Help: "Route guard decisions by kind.",
		},
		[]string{"kind"},
	)

	transitionsRefused = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaintdesk_transitions_refused_total",
			Help: "Complaint actions refused before reaching the remote API.",
		},
		[]string{"action", "reason"},
	)

	sessionsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "complaintdesk_sessions_swept_total",
		Help: "Expired sessions removed by the sweeper.",
	})
)

// Init registers every collector with the given registerer. Passing nil
// registers with the default registry.
func Init(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		remoteCallsTotal,
		remoteCallDuration,
		navigationDecisions,
		transitionsRefused,
		sessionsSwept,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count, latency and in-flight requests. The
// route label is the chi route pattern so ids do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

// ObserveRemoteCall records one remote API call.
func ObserveRemoteCall(op, outcome string, d time.Duration) {
	remoteCallsTotal.WithLabelValues(op, outcome).Inc()
	remoteCallDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveDecision counts one route guard decision.
func ObserveDecision(kind string) {
	navigationDecisions.WithLabelValues(kind).Inc()
}

// ObserveRefusedTransition counts a complaint action stopped by the
// lifecycle pre-flight.
func ObserveRefusedTransition(action, reason string) {
	transitionsRefused.WithLabelValues(action, reason).Inc()
}

// ObserveSwept adds n to the swept sessions counter.
func ObserveSwept(n int64) {
	if n > 0 {
		sessionsSwept.Add(float64(n))
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
