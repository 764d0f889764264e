package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetricsRegistration verifies metrics are registered without panicking
func TestMetricsRegistration(t *testing.T) {
	// The init() function already ran when the package loaded
	if ProbeDuration == nil {
		t.Error("ProbeDuration metric is nil")
	}
	if ProbeFailures == nil {
		t.Error("ProbeFailures metric is nil")
	}
	if FactsEmitted == nil {
		t.Error("FactsEmitted metric is nil")
	}
	if LastRun == nil {
		t.Error("LastRun metric is nil")
	}
}

// TestProbeFailuresIncrement verifies counter can be incremented
func TestProbeFailuresIncrement(t *testing.T) {
	before := testutil.ToFloat64(ProbeFailures.WithLabelValues("cl", ReasonExec))

	ProbeFailures.WithLabelValues("cl", ReasonExec).Inc()

	after := testutil.ToFloat64(ProbeFailures.WithLabelValues("cl", ReasonExec))
	if after != before+1 {
		t.Errorf("Counter did not increment: before=%f, after=%f", before, after)
	}
}

// TestFactsEmittedSet verifies gauge can be set
func TestFactsEmittedSet(t *testing.T) {
	FactsEmitted.Set(6)
	if v := testutil.ToFloat64(FactsEmitted); v != 6 {
		t.Errorf("Expected gauge value 6, got %f", v)
	}

	FactsEmitted.Set(5)
	if v := testutil.ToFloat64(FactsEmitted); v != 5 {
		t.Errorf("Expected gauge value 5, got %f", v)
	}
}

// TestProbeDurationObserve verifies one series per probe label
func TestProbeDurationObserve(t *testing.T) {
	ProbeDuration.WithLabelValues("os").Observe(0.02)
	ProbeDuration.WithLabelValues("gcc").Observe(0.3)

	if n := testutil.CollectAndCount(ProbeDuration); n < 2 {
		t.Errorf("Expected at least 2 histogram series, got %d", n)
	}
}

// TestWriteTextfile verifies the registry is exported in text format
func TestWriteTextfile(t *testing.T) {
	LastRun.Set(1700000000)
	FactsEmitted.Set(6)

	path := filepath.Join(t.TempDir(), "version_info.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}

	out := string(data)
	for _, want := range []string{
		"version_info_facts_emitted 6",
		"version_info_last_run_timestamp_seconds 1.7e+09",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "go_goroutines") {
		t.Error("textfile should not include Go runtime metrics")
	}
}

// TestWriteTextfileBadDir verifies a missing directory is reported
func TestWriteTextfileBadDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "version_info.prom")
	if err := WriteTextfile(path); err == nil {
		t.Error("Expected error for missing directory, got nil")
	}
}
