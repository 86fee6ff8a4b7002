// Package metrics defines the Prometheus collectors shared by the client and the reference backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "calsync"

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AuthTransitions *prometheus.CounterVec
	EventsLoaded    prometheus.Gauge
	StaleResponses  *prometheus.CounterVec
	ServerRequests  *prometheus.CounterVec
	ServerLatency   *prometheus.HistogramVec
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_requests_total",
				Help:      "Remote calls issued by the client",
			},
			[]string{"op", "outcome"}, // outcome=ok/network/auth/validation/server
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "client_request_duration_seconds",
				Help:      "Remote call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		AuthTransitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_transitions_total",
				Help:      "Session status transitions",
			},
			[]string{"status"},
		),
		EventsLoaded: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "events_in_store",
				Help:      "Number of events currently held by the event store",
			},
		),
		StaleResponses: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_responses_total",
				Help:      "Remote results dropped because local state moved on",
			},
			[]string{"op"},
		),
		ServerRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "server_requests_total",
				Help:      "Requests served by the reference backend",
			},
			[]string{"route", "code"},
		),
		ServerLatency: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "server_request_duration_seconds",
				Help:      "Reference backend request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// ObserveRequest records one client call.
func (m *Metrics) ObserveRequest(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(op, outcome).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(seconds)
}

// Transition records a session status change.
func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.AuthTransitions.WithLabelValues(status).Inc()
}

// SetEvents records the size of the event sequence.
func (m *Metrics) SetEvents(n int) {
	if m == nil {
		return
	}
	m.EventsLoaded.Set(float64(n))
}

// Stale records a dropped remote result.
func (m *Metrics) Stale(op string) {
	if m == nil {
		return
	}
	m.StaleResponses.WithLabelValues(op).Inc()
}

// ObserveServer records one backend request.
func (m *Metrics) ObserveServer(route, code string, seconds float64) {
	if m == nil {
		return
	}
	m.ServerRequests.WithLabelValues(route, code).Inc()
	m.ServerLatency.WithLabelValues(route).Observe(seconds)
}
