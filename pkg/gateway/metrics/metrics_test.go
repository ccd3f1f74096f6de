package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordSessionStart()
	m.RecordSessionEnd(1.5)
	m.RecordClientFrame("audio")
	m.RecordMalformedMessage()
	m.RecordBackendEvent("audio_frame")
	m.RecordToolCall("portfolioLookup", true)
}

func TestRecordSessionLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordSessionStart()
	if got := testutil.ToFloat64(m.ActiveSessions); got != 1 {
		t.Fatalf("active sessions after start = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionsTotal); got != 1 {
		t.Fatalf("sessions total = %v, want 1", got)
	}

	m.RecordSessionEnd(2.0)
	if got := testutil.ToFloat64(m.ActiveSessions); got != 0 {
		t.Fatalf("active sessions after end = %v, want 0", got)
	}
}

func TestRecordCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordClientFrame("audio")
	m.RecordClientFrame("audio")
	m.RecordClientFrame("text")
	if got := testutil.ToFloat64(m.ClientFrames.WithLabelValues("audio")); got != 2 {
		t.Fatalf("audio frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ClientFrames.WithLabelValues("text")); got != 1 {
		t.Fatalf("text frames = %v, want 1", got)
	}

	m.RecordMalformedMessage()
	if got := testutil.ToFloat64(m.MalformedMessages); got != 1 {
		t.Fatalf("malformed messages = %v, want 1", got)
	}

	m.RecordToolCall("newsLookup", true)
	m.RecordToolCall("newsLookup", false)
	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("newsLookup", "ok")); got != 1 {
		t.Fatalf("ok tool calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("newsLookup", "error")); got != 1 {
		t.Fatalf("error tool calls = %v, want 1", got)
	}
}
