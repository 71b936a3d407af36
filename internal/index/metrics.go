package index

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "baw"

// Metrics records index maintenance. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	rebuildsTotal    *prometheus.CounterVec
	rebuildDuration  prometheus.Histogram
	artifactsIndexed prometheus.Gauge
	linksIndexed     prometheus.Gauge
	parseFailures    prometheus.Counter
	incrementalOps   *prometheus.CounterVec
}

// NewMetrics creates the index collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		rebuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "index",
				Name:      "rebuilds_total",
				Help:      "Total number of full index rebuilds",
			},
			[]string{"result"}, // success, failure
		),
		rebuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "index",
				Name:      "rebuild_duration_seconds",
				Help:      "Full index rebuild duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		artifactsIndexed: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "index",
				Name:      "artifacts",
				Help:      "Artifacts in the index after the last rebuild",
			},
		),
		linksIndexed: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "index",
				Name:      "links",
				Help:      "Links in the index after the last rebuild",
			},
		),
		parseFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "index",
				Name:      "parse_failures_total",
				Help:      "Documents skipped because they could not be parsed",
			},
		),
		incrementalOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "index",
				Name:      "incremental_operations_total",
				Help:      "Single-artifact index updates",
			},
			[]string{"op"}, // upsert, delete
		),
	}
}

func (m *Metrics) recordRebuild(d time.Duration, result RebuildResult, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.rebuildsTotal.WithLabelValues("failure").Inc()
		return
	}
	m.rebuildsTotal.WithLabelValues("success").Inc()
	m.rebuildDuration.Observe(d.Seconds())
	m.artifactsIndexed.Set(float64(result.Artifacts))
	m.linksIndexed.Set(float64(result.Links))
}

func (m *Metrics) recordParseFailure() {
	if m == nil {
		return
	}
	m.parseFailures.Inc()
}

func (m *Metrics) recordIncremental(op string) {
	if m == nil {
		return
	}
	m.incrementalOps.WithLabelValues(op).Inc()
}
