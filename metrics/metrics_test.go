package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EnrollmentAttempt("ok")
		m.CreditsMoved("deposit", 10)
		m.GenerationFinished("sync", "done", 3, time.Second)
		m.OutcomeRecorded("DRAW")
		m.StandingsRecomputed()
		m.SetQueueDepth(2)
		m.SetWorkersBusy(1)
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.EnrollmentAttempt("ok")
	m.EnrollmentAttempt("ok")
	m.EnrollmentAttempt("TOURNAMENT_FULL")
	m.CreditsMoved("enrollment_debit", -500)
	m.GenerationFinished("async", "done", 1023, 2*time.Second)

	assert.Equal(t, 2.0, counterValue(t, m.enrollments.WithLabelValues("ok")))
	assert.Equal(t, 1.0, counterValue(t, m.enrollments.WithLabelValues("TOURNAMENT_FULL")))
	assert.Equal(t, 500.0, counterValue(t, m.creditMovements.WithLabelValues("enrollment_debit")))
	assert.Equal(t, 1023.0, counterValue(t, m.generatedMatches))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/matches/{matchID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/matches/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	got := counterValue(t, m.httpRequests.WithLabelValues("/matches/{matchID}", http.MethodGet, "418"))
	assert.Equal(t, 1.0, got)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, c.Write(&out))
	return out.GetCounter().GetValue()
}
