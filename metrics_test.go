package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMetricsIncAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricReplayDetected)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("Value(MetricLoginSuccess) = %d, want 2", got)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 2 {
		t.Fatalf("snapshot login success = %d, want 2", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricReplayDetected] != 1 {
		t.Fatalf("snapshot replay = %d, want 1", snap.Counters[MetricReplayDetected])
	}
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricLoginFailure)
	if got := m.Value(MetricLoginFailure); got != 0 {
		t.Fatalf("disabled metrics counted: %d", got)
	}

	snap := m.Snapshot()
	if len(snap.Counters) != 0 {
		t.Fatalf("disabled snapshot carries %d counters", len(snap.Counters))
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginFailure)
	if nilMetrics.Enabled() {
		t.Fatal("nil metrics reported enabled")
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricAuthenticateLatency, 2*time.Millisecond)
	m.Observe(MetricAuthenticateLatency, 30*time.Millisecond)
	m.Observe(MetricAuthenticateLatency, time.Second)

	buckets := m.Snapshot().Histograms[MetricAuthenticateLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("bucket count = %d, want %d", len(buckets), histBucketCount)
	}
	if buckets[0] != 1 || buckets[2] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected bucket spread: %v", buckets)
	}

	// Samples against non-latency IDs are dropped.
	m.Observe(MetricLoginSuccess, time.Millisecond)
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("Observe leaked into counter: %d", got)
	}
}

func TestEngineFeedsCounters(t *testing.T) {
	env := newTestEngine(t, testEngineConfig())
	ctx := context.Background()

	mustRegister(t, env, "owner@example.com", "Str0ng!pass")

	if _, err := env.engine.Login(ctx, "owner@example.com", "Wrong1!pass", testRC()); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "owner@example.com", "Str0ng!pass", testRC()); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRegistrationSuccess] != 1 {
		t.Fatalf("registration counter = %d, want 1", snap.Counters[MetricRegistrationSuccess])
	}
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("login success counter = %d, want 1", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("login failure counter = %d, want 1", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricSessionCreated] != 2 {
		t.Fatalf("session created counter = %d, want 2", snap.Counters[MetricSessionCreated])
	}
}
