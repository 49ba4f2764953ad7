// Package metrics provides Prometheus metrics for the fitting pipeline
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/KaramelBytes/assayfit-cli/internal/assay"
)

// Outcome label values besides the assay error kinds.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// FitMetrics counts analyzed uploads and their fit outcomes
type FitMetrics struct {
	registry *prometheus.Registry

	fitsTotal      *prometheus.CounterVec
	fitDuration    *prometheus.HistogramVec
	removedPoints  prometheus.Histogram
	highKMTotal    prometheus.Counter
	fallbacksTotal prometheus.Counter
}

// NewFitMetrics creates and registers the fit metrics
func NewFitMetrics(registry *prometheus.Registry) (*FitMetrics, error) {
	m := &FitMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Registry returns the registry the metrics were registered with
func (m *FitMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *FitMetrics) initMetrics() {
	m.fitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assayfit_fits_total",
			Help: "Total number of analyzed uploads",
		},
		[]string{"layout", "outcome"}, // outcome: success or an error kind
	)

	m.fitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "assayfit_fit_duration_seconds",
			Help: "Time taken to detect, extract and fit one upload",
			// 1ms to ~0.5s
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"layout"},
	)

	m.removedPoints = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assayfit_reciprocal_removed_points",
			Help:    "Points dropped before the Lineweaver-Burk fit converged",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 24},
		},
	)

	m.highKMTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assayfit_high_km_total",
			Help: "Kinetic fits that took the high-KM linear branch",
		},
	)

	m.fallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assayfit_reciprocal_fallbacks_total",
			Help: "Lineweaver-Burk fits that failed for every truncation",
		},
	)
}

// Describe implements the Collector interface
func (m *FitMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.fitsTotal.Describe(ch)
	m.fitDuration.Describe(ch)
	m.removedPoints.Describe(ch)
	m.highKMTotal.Describe(ch)
	m.fallbacksTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *FitMetrics) Collect(ch chan<- prometheus.Metric) {
	m.fitsTotal.Collect(ch)
	m.fitDuration.Collect(ch)
	m.removedPoints.Collect(ch)
	m.highKMTotal.Collect(ch)
	m.fallbacksTotal.Collect(ch)
}

// ObserveFit records the outcome and duration of one upload
func (m *FitMetrics) ObserveFit(layout string, err error, elapsed time.Duration) {
	m.fitsTotal.WithLabelValues(layout, Outcome(err)).Inc()
	if err == nil {
		m.fitDuration.WithLabelValues(layout).Observe(elapsed.Seconds())
	}
}

// ObserveKinetic records the branch taken by a successful kinetic fit
func (m *FitMetrics) ObserveKinetic(highKM bool, removed int, fallback bool) {
	if highKM {
		m.highKMTotal.Inc()
	}
	if fallback {
		m.fallbacksTotal.Inc()
		return
	}
	m.removedPoints.Observe(float64(removed))
}

// Outcome maps a pipeline error onto the outcome label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if kind := assay.Kind(err); kind != "" {
		return kind
	}
	return OutcomeError
}
