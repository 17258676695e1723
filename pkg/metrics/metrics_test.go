package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := New(WithRegistry(reg), WithNamespace("test"))

	rec.TimerScheduled("debounce", "search")
	rec.TimerEmission("debounce", "search")
	rec.TimerEmission("debounce", "search")
	rec.Navigation("filters", OutcomeRequested)
	rec.Navigation("filters", OutcomeSkipped)
	rec.BridgeActivated("location")
	rec.BridgeActivated("location")
	rec.BridgeStopped("location")
	rec.HostConnected()
	rec.HostMessage("navigate", "in")

	if got := testutil.ToFloat64(rec.timerEmissions.WithLabelValues("debounce", "search")); got != 2 {
		t.Errorf("timer emissions: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(rec.navigations.WithLabelValues("filters", OutcomeSkipped)); got != 1 {
		t.Errorf("skipped navigations: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.bridgesActive.WithLabelValues("location")); got != 1 {
		t.Errorf("active bridges: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.hostConnections); got != 1 {
		t.Errorf("host connections: got %v, want 1", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.TimerScheduled("throttle", "x")
	rec.TimerEmission("throttle", "x")
	rec.BridgeActivated("x")
	rec.BridgeStopped("x")
	rec.Navigation("x", OutcomeFailed)
	rec.HostConnected()
	rec.HostDisconnected()
	rec.HostMessage("ack", "out")
}

func TestNewRegistersOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := New(WithRegistry(reg), WithConstLabels(prometheus.Labels{"app": "demo"}))
	rec.HostConnected()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "urlstore_host_connections" {
			found = true
		}
	}
	if !found {
		t.Error("urlstore_host_connections not registered")
	}
}
