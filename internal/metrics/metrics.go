// Package metrics records per-invocation orchestration metrics and writes
// them in the node-exporter textfile format.
//
// Every symphony command is a short-lived process, so nothing is served
// over HTTP. When enabled, the collected values are flushed to a .prom file
// that a node-exporter textfile collector picks up. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the symphony collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	// Transitions counts mutation operations by operation and outcome.
	Transitions *prometheus.CounterVec
	// LockWait observes how long lock acquisition took.
	LockWait prometheus.Histogram
	// Phases reports the number of phases in each status after a write.
	Phases *prometheus.GaugeVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symphony_transitions_total",
				Help: "Total number of state mutations applied",
			},
			[]string{"operation", "outcome"},
		),
		LockWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "symphony_lock_wait_seconds",
				Help:    "Time spent waiting for the state document lock",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		Phases: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "symphony_phases",
				Help: "Number of phases in each status",
			},
			[]string{"status"},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveTransition counts one operation outcome.
func (m *Metrics) ObserveTransition(operation, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(operation, outcome).Inc()
}

// ObserveLockWait records a lock acquisition time.
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.Observe(d.Seconds())
}

// SetPhaseCounts replaces the per-status phase gauges.
func (m *Metrics) SetPhaseCounts(counts map[string]int) {
	if m == nil {
		return
	}
	m.Phases.Reset()
	for status, n := range counts {
		m.Phases.WithLabelValues(status).Set(float64(n))
	}
}

// WriteTextfile writes the current values to path, creating its directory.
// The write is atomic, as the textfile collector requires.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
