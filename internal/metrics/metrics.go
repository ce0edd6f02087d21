// Package metrics exposes Prometheus instrumentation for live profiling
// sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision outcomes.
const (
	DecisionSkip      = "skip"
	DecisionOwn       = "own"
	DecisionAggregate = "aggregate"
)

// Session results.
const (
	ResultPersisted    = "persisted"
	ResultEmpty        = "empty"
	ResultInvalid      = "invalid"
	ResultPersistError = "persist_error"
	ResultReset        = "reset"
	ResultBeginError   = "begin_error"
)

// Session records decision and session outcomes of one controller.
type Session struct {
	decisions *prometheus.CounterVec
	results   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	active    prometheus.Gauge
}

// NewSession creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which keeps every method usable.
func NewSession(reg prometheus.Registerer) *Session {
	return &Session{
		decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "liveprof_decisions_total",
			Help: "Total number of enable decisions by outcome.",
		}, []string{"outcome"}),
		results: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "liveprof_sessions_total",
			Help: "Total number of finished profiling sessions by backend and result.",
		}, []string{"backend", "result"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "liveprof_session_duration_seconds",
			Help:    "Wall time between enabling and ending a profiling session.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60},
		}, []string{"backend"}),
		active: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "liveprof_session_active",
			Help: "1 while a profiling session is enabled.",
		}),
	}
}

// Decided records one enable decision.
func (s *Session) Decided(outcome string) {
	s.decisions.WithLabelValues(outcome).Inc()
}

// Began marks a session as enabled.
func (s *Session) Began() {
	s.active.Set(1)
}

// Finished records the result of an enabled session.
func (s *Session) Finished(backend, result string, elapsed time.Duration) {
	s.active.Set(0)
	s.results.WithLabelValues(backend, result).Inc()
	s.duration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// Decisions returns the decision counter for outcome.
func (s *Session) Decisions(outcome string) prometheus.Counter {
	return s.decisions.WithLabelValues(outcome)
}

// Results returns the session counter for backend and result.
func (s *Session) Results(backend, result string) prometheus.Counter {
	return s.results.WithLabelValues(backend, result)
}
