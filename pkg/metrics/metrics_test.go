package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewManagerRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(WithRegistry(reg), WithNamespace("test"), WithSubsystem("unit"))
	if m == nil {
		t.Fatal("expected non-nil manager")
	}

	m.eventsIngested.Inc()
	m.rulesMatched.WithLabelValues("count").Inc()
	m.violationsRecorded.WithLabelValues("high").Inc()
	m.httpRequests.WithLabelValues("events", "POST", "202").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}

func TestGlobalHelpersDoNotPanic(t *testing.T) {
	RecordEventIngested()
	RecordEventEvaluated()
	RecordEvaluationNoOp()
	RecordEvaluationError()
	RecordEvaluationLatency(1.5)
	RecordRuleMatched("range")
	RecordViolation("medium")
	RecordScoreSubmission()
	RecordScoreImprovement()
	RecordScoreSubmitLatency(0.2)
	RecordActivityEmitted("high_score")
	RecordActivityClaimLost()
	RecordPollerCycle()
	RecordPollerEventsProcessed(3)
	RecordPollerItemError()
	RecordPollerCycleDuration(12)
	RecordStoreConflictRetry()
	RecordStoreError()
	RecordStoreOpLatency(0.7)
	RecordHTTPRequest("scores", "POST", "200")
	RecordHTTPRequestDuration("scores", "POST", "200", 3.4)

	if GetRegistry() == nil {
		t.Fatal("expected non-nil registry")
	}
}
