package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tournament_engine"

// Metrics holds every collector the engine exports. A nil *Metrics is valid
// and records nothing, which keeps services usable without a registry.
type Metrics struct {
	enrollments        *prometheus.CounterVec
	creditMovements    *prometheus.CounterVec
	generationJobs     *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generatedMatches   prometheus.Counter
	outcomes           *prometheus.CounterVec
	standingsRecomputs prometheus.Counter
	queueDepth         prometheus.Gauge
	workersBusy        prometheus.Gauge
	httpLatency        *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "enrollment_attempts_total",
			Help:      "Enrollment attempts by result code.",
		}, []string{"result"}),
		creditMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "credits_total",
			Help:      "Credits moved through wallets by transaction type.",
		}, []string{"type"}),
		generationJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "jobs_total",
			Help:      "Generation jobs by path and final status.",
		}, []string{"path", "status"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Time spent generating and persisting a bracket.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		generatedMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "matches_total",
			Help:      "Match rows created by bracket generation.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "results",
			Name:      "outcomes_total",
			Help:      "Recorded match outcomes.",
		}, []string{"outcome"}),
		standingsRecomputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "recomputations_total",
			Help:      "Standing recomputations written.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workers",
			Name:      "queue_depth",
			Help:      "Generation tasks waiting in the local queue.",
		}),
		workersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workers",
			Name:      "busy",
			Help:      "Workers currently processing a generation task.",
		}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_latency_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of HTTP requests.",
		}, []string{"route", "method", "code"}),
	}
	reg.MustRegister(
		m.enrollments, m.creditMovements, m.generationJobs, m.generationDuration, m.generatedMatches,
		m.outcomes, m.standingsRecomputs, m.queueDepth, m.workersBusy, m.httpLatency, m.httpRequests,
	)
	return m
}

func (m *Metrics) EnrollmentAttempt(result string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(result).Inc()
}

func (m *Metrics) CreditsMoved(txType string, amount int64) {
	if m == nil || amount == 0 {
		return
	}
	if amount < 0 {
		amount = -amount
	}
	m.creditMovements.WithLabelValues(txType).Add(float64(amount))
}

func (m *Metrics) GenerationFinished(path, status string, matches int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generationJobs.WithLabelValues(path, status).Inc()
	m.generationDuration.WithLabelValues(path).Observe(elapsed.Seconds())
	m.generatedMatches.Add(float64(matches))
}

func (m *Metrics) OutcomeRecorded(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StandingsRecomputed() {
	if m == nil {
		return
	}
	m.standingsRecomputs.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) SetWorkersBusy(n int64) {
	if m == nil {
		return
	}
	m.workersBusy.Set(float64(n))
}

// Middleware records latency and count per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		labels := prometheus.Labels{"route": route, "method": r.Method, "code": strconv.Itoa(rw.status)}
		m.httpLatency.With(labels).Observe(time.Since(start).Seconds())
		m.httpRequests.With(labels).Inc()
	})
}

// responseWriter captures the status code for the request metrics.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}
