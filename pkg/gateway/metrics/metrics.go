// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all gateway Prometheus collectors. A nil *Metrics is valid
// and records nothing, so instrumentation is optional in tests.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionsTotal   prometheus.Counter
	SessionDuration prometheus.Histogram

	ClientFrames      *prometheus.CounterVec
	MalformedMessages prometheus.Counter
	BackendEvents     *prometheus.CounterVec
	ToolCalls         *prometheus.CounterVec
}

// New registers all collectors with reg and returns the handle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "advisor_active_sessions",
			Help: "Current number of live relay sessions",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "advisor_sessions_total",
			Help: "Total number of relay sessions accepted",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "advisor_session_duration_seconds",
			Help:    "Duration of relay sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		ClientFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_client_frames_total",
			Help: "Total client frames received, by frame type",
		}, []string{"type"}),
		MalformedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "advisor_malformed_messages_total",
			Help: "Total malformed client frames skipped",
		}),
		BackendEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_backend_events_total",
			Help: "Total normalized backend events, by kind",
		}, []string{"kind"}),
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_tool_calls_total",
			Help: "Total backend tool invocations, by tool and outcome",
		}, []string{"tool", "outcome"}),
	}
}

func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordClientFrame(frameType string) {
	if m == nil {
		return
	}
	m.ClientFrames.WithLabelValues(frameType).Inc()
}

func (m *Metrics) RecordMalformedMessage() {
	if m == nil {
		return
	}
	m.MalformedMessages.Inc()
}

func (m *Metrics) RecordBackendEvent(kind string) {
	if m == nil {
		return
	}
	m.BackendEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordToolCall(tool string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
}
