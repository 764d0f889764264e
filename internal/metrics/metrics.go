// -----------------------------------------------------------------------------
// Prometheus Metrics
// -----------------------------------------------------------------------------
//
// This package defines the Prometheus metrics recorded while probing the
// build environment. The tool runs once per build and exits, so nothing is
// scraped over HTTP; instead the registry is written to a textfile that the
// node_exporter textfile collector picks up on build agents.
//
// Metrics Philosophy:
//   - ProbeDuration: spot slow compilers or hung OS queries
//   - ProbeFailures: spot agents whose toolchain is broken or missing
//   - FactsEmitted:  sanity check on what ended up in the header
//   - LastRun:       detect agents that stopped stamping builds
//
// Metric Types:
//   Counter   - Monotonically increasing value (failures)
//   Gauge     - Value that can go up or down (facts, timestamp)
//   Histogram - Distribution of values (probe duration)
//
// -----------------------------------------------------------------------------

package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// -----------------------------------------------------------------------------
// Metric Definitions
// -----------------------------------------------------------------------------

// Registry holds every metric exported by this tool. A private registry keeps
// Go runtime and process collectors out of the textfile.
var Registry = prometheus.NewRegistry()

var (
	// ProbeDuration measures how long each probe took.
	// Labels: probe (host, os, gcc, clang, cl, compiler)
	ProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "version_info_probe_duration_seconds",
			Help:    "Duration of build environment probes in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"probe"},
	)

	// ProbeFailures counts probes whose command failed or printed nothing.
	// Labels: probe, reason (exec_error, empty_output, split_error)
	//
	// Example Alert:
	//   - increase(version_info_probe_failures_total[1d]) > 0
	ProbeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_info_probe_failures_total",
			Help: "Total number of failed build environment probes by reason",
		},
		[]string{"probe", "reason"},
	)

	// FactsEmitted records how many BUILD_* facts the last run wrote.
	FactsEmitted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "version_info_facts_emitted",
			Help: "Number of BUILD_* facts written by the last run",
		},
	)

	// LastRun is the Unix timestamp of the last completed run.
	LastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "version_info_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed run",
		},
	)
)

// Failure reasons used as the "reason" label of ProbeFailures.
const (
	ReasonExec  = "exec_error"
	ReasonEmpty = "empty_output"
	ReasonSplit = "split_error"
)

// -----------------------------------------------------------------------------
// Metric Registration
// -----------------------------------------------------------------------------

func init() {
	Registry.MustRegister(ProbeDuration)
	Registry.MustRegister(ProbeFailures)
	Registry.MustRegister(FactsEmitted)
	Registry.MustRegister(LastRun)
}

// -----------------------------------------------------------------------------
// Textfile Export
// -----------------------------------------------------------------------------

// WriteTextfile writes the registry in Prometheus text format to path. The
// file is written to a temp file and renamed, so the collector never reads a
// partial file.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
