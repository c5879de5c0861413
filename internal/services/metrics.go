package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taptap-tz/taptap-bot/internal/models"
)

// Metrics holds the bot's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	turns           *prometheus.CounterVec
	turnDuration    prometheus.Histogram
	gatewayFailures *prometheus.CounterVec
	renderFailures  prometheus.Counter
	sessionsCreated prometheus.Counter
	handlerErrors   prometheus.Counter
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taptap_turns_total",
				Help: "Turns processed, by the state the turn ended in",
			},
			[]string{"state"},
		),
		turnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taptap_turn_duration_seconds",
				Help:    "Time from inbound message to rendered reply",
				Buckets: prometheus.DefBuckets,
			},
		),
		gatewayFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taptap_gateway_failures_total",
				Help: "Failed backend calls, by operation",
			},
			[]string{"operation"},
		),
		renderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taptap_render_failures_total",
			Help: "Outbound messages the transport rejected",
		}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taptap_sessions_created_total",
			Help: "Conversations seen for the first time",
		}),
		handlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taptap_handler_errors_total",
			Help: "Turns that ended in the technical error screen",
		}),
	}

	m.Registry.MustRegister(
		m.turns,
		m.turnDuration,
		m.gatewayFailures,
		m.renderFailures,
		m.sessionsCreated,
		m.handlerErrors,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Turn(state models.State, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(string(state)).Inc()
	m.turnDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) GatewayFailure(operation string) {
	if m == nil {
		return
	}
	m.gatewayFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) RenderFailure() {
	if m == nil {
		return
	}
	m.renderFailures.Inc()
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) HandlerError() {
	if m == nil {
		return
	}
	m.handlerErrors.Inc()
}
