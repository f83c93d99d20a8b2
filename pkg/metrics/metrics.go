// Package metrics counts the work of a placement run and exports the
// counters in Prometheus text format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sleeve"

// Metrics holds the counters of one run. Each Metrics owns its registry so
// runs never share state.
type Metrics struct {
	// SegmentsProcessed counts segments cast against the wall index.
	// Labels: kind (duct, pipe)
	SegmentsProcessed *prometheus.CounterVec

	// SegmentsRejected counts elements skipped for a malformed curve.
	// Labels: kind (duct, pipe)
	SegmentsRejected *prometheus.CounterVec

	// PenetrationsFound counts deduplicated wall crossings.
	PenetrationsFound prometheus.Counter

	// OpeningsPlaced counts openings written to the store.
	OpeningsPlaced prometheus.Counter

	registry *prometheus.Registry
}

// New returns a fresh set of counters on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		SegmentsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_processed_total",
			Help:      "Segments cast against the wall index.",
		}, []string{"kind"}),
		SegmentsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_rejected_total",
			Help:      "Linear elements skipped because their curve is not a straight segment.",
		}, []string{"kind"}),
		PenetrationsFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "penetrations_found_total",
			Help:      "Deduplicated wall crossings.",
		}),
		OpeningsPlaced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "openings_placed_total",
			Help:      "Openings written to the store.",
		}),
		registry: reg,
	}
}

// RecordSegment counts one processed segment and its crossings.
func (m *Metrics) RecordSegment(kind string, penetrations int) {
	m.SegmentsProcessed.WithLabelValues(kind).Inc()
	m.PenetrationsFound.Add(float64(penetrations))
}

// RecordRejected counts one skipped element.
func (m *Metrics) RecordRejected(kind string) {
	m.SegmentsRejected.WithLabelValues(kind).Inc()
}

// RecordPlaced counts n placed openings.
func (m *Metrics) RecordPlaced(n int) {
	m.OpeningsPlaced.Add(float64(n))
}

// WriteTextfile writes every counter to path in the node exporter textfile
// format. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
