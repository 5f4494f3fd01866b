// Package metrics exposes Prometheus instrumentation for the
// validation engine, registry and batch runner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for
// the address validation service.
type Metrics struct {
	ValidationsTotal   *prometheus.CounterVec // labels: status={valid,needs_review,invalid}, matchType
	ValidationErrors   prometheus.Counter
	ValidationDuration prometheus.Histogram

	// Registry metrics.
	RegistryStreets     prometheus.Gauge
	RegistryAddresses   prometheus.Gauge
	RegistryRebuilds    *prometheus.CounterVec // labels: outcome={success,error}
	RegistryRebuildTime prometheus.Histogram

	// Batch run metrics.
	BatchRecords  *prometheus.CounterVec // labels: outcome={successful,failed}
	BatchSize     prometheus.Histogram
	BatchDuration prometheus.Histogram
}

// New creates and registers all service metrics with the default
// Prometheus registry.
func New() *Metrics {
	m := build()
	prometheus.MustRegister(
		m.ValidationsTotal,
		m.ValidationErrors,
		m.ValidationDuration,
		m.RegistryStreets,
		m.RegistryAddresses,
		m.RegistryRebuilds,
		m.RegistryRebuildTime,
		m.BatchRecords,
		m.BatchSize,
		m.BatchDuration,
	)
	return m
}

// NewForTesting creates Metrics without touching the default registry
// to avoid "already registered" panics across tests.
func NewForTesting() *Metrics {
	return build()
}

func build() *Metrics {
	return &Metrics{
		ValidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "address_validation",
			Name:      "validations_total",
			Help:      "Completed validations by overall status and match type.",
		}, []string{"status", "match_type"}),
		ValidationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "address_validation",
			Name:      "validation_errors_total",
			Help:      "Validations that failed with an error.",
		}),
		ValidationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "address_validation",
			Name:      "validation_duration_seconds",
			Help:      "Duration of a single address validation.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		RegistryStreets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "address_validation",
			Name:      "registry_streets",
			Help:      "Streets in the active registry snapshot.",
		}),
		RegistryAddresses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "address_validation",
			Name:      "registry_addresses",
			Help:      "Addresses in the active registry snapshot.",
		}),
		RegistryRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "address_validation",
			Name:      "registry_rebuilds_total",
			Help:      "Registry snapshot rebuilds by outcome.",
		}, []string{"outcome"}),
		RegistryRebuildTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "address_validation",
			Name:      "registry_rebuild_duration_seconds",
			Help:      "Duration of a registry snapshot rebuild.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		BatchRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "address_validation",
			Name:      "batch_records_total",
			Help:      "Batch-processed records by outcome.",
		}, []string{"outcome"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "address_validation",
			Name:      "batch_size",
			Help:      "Records per batch run.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50},
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "address_validation",
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete batch run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
	}
}
