package telemetry

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics collects Prometheus metrics for a single lockstep run. A nil
// *Metrics is the disabled form: every method is a no-op on it.
type Metrics struct {
	applies          *prometheus.CounterVec
	retries          *prometheus.CounterVec
	reconciliations  *prometheus.CounterVec
	propagationPolls prometheus.Counter
	propagationWait  prometheus.Histogram
	runDuration      *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector backed by a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		applies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lockstep",
				Subsystem: "provision",
				Name:      "applies_total",
				Help:      "Total number of resource applies by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lockstep",
				Subsystem: "provision",
				Name:      "retries_total",
				Help:      "Total number of retried operations",
			},
			[]string{"operation"},
		),
		reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lockstep",
				Subsystem: "reconcile",
				Name:      "resolutions_total",
				Help:      "Total number of ambiguous applies resolved by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		propagationPolls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lockstep",
				Subsystem: "grants",
				Name:      "propagation_polls_total",
				Help:      "Total number of role-binding visibility polls",
			},
		),
		propagationWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "lockstep",
				Subsystem: "grants",
				Name:      "propagation_wait_seconds",
				Help:      "Time spent waiting for role bindings to become effective",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5min
			},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lockstep",
				Name:      "run_duration_seconds",
				Help:      "Duration of a command run in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 500ms to ~17min
			},
			[]string{"command"},
		),
	}

	m.registry.MustRegister(
		m.applies,
		m.retries,
		m.reconciliations,
		m.propagationPolls,
		m.propagationWait,
		m.runDuration,
	)
	return m
}

// RecordApply records one resource apply with its outcome
// ("succeeded", "failed", "unknown").
func (m *Metrics) RecordApply(kind, outcome string) {
	if m == nil {
		return
	}
	m.applies.WithLabelValues(kind, outcome).Inc()
}

// RecordRetry records one retried attempt of the named operation.
func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

// RecordReconciliation records the resolution of an ambiguous apply
// ("imported" or "failed").
func (m *Metrics) RecordReconciliation(kind, outcome string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(kind, outcome).Inc()
}

// RecordPropagationPoll records one visibility poll against the provider.
func (m *Metrics) RecordPropagationPoll() {
	if m == nil {
		return
	}
	m.propagationPolls.Inc()
}

// ObservePropagationWait records how long one role binding took to become
// effective.
func (m *Metrics) ObservePropagationWait(d time.Duration) {
	if m == nil {
		return
	}
	m.propagationWait.Observe(d.Seconds())
}

// ObserveRunDuration records the wall-clock duration of a command run.
func (m *Metrics) ObserveRunDuration(command string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(command).Observe(d.Seconds())
}

// WriteFile exports the gathered metric families in Prometheus text format,
// replacing path atomically so a node-exporter textfile collector never
// reads a partial snapshot.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return fmt.Errorf("encoding metric family %s: %w", family.GetName(), err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing metrics file: %w", err)
	}
	return nil
}
