// Package metrics exports world runtime signals to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "festering"

// Metrics implements the world's metrics sink. All methods are safe for
// concurrent use.
type Metrics struct {
	gatherer prometheus.Gatherer

	tick         prometheus.Gauge
	sources      prometheus.Gauge
	frontier     prometheus.Gauge
	loadedChunks prometheus.Gauge
	observers    prometheus.Gauge

	conversions    *prometheus.CounterVec
	sourcesRemoved prometheus.Counter
	sourcesSkipped prometheus.Counter
	bursts         prometheus.Counter
	burstBlocks    prometheus.Counter
	cycleDuration  prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		gatherer: prometheus.DefaultGatherer,
		tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "world_tick",
			Help:      "Current world tick.",
		}),
		sources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sources",
			Help:      "Registered corruption sources.",
		}),
		frontier: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_voxels",
			Help:      "Frontier members summed over all sources.",
		}),
		loadedChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loaded_chunks",
			Help:      "Chunks currently loaded.",
		}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Connected observer sessions.",
		}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_changes_total",
			Help:      "Voxel writes made by sources, by cause.",
		}, []string{"cause"}),
		sourcesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_removed_total",
			Help:      "Sources dropped because their portal disappeared.",
		}),
		sourcesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_skipped_total",
			Help:      "Source visits skipped because the center was not loaded.",
		}),
		bursts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bursts_total",
			Help:      "Bursts triggered by arrivals or admin requests.",
		}),
		burstBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "burst_blocks_total",
			Help:      "Voxels converted by bursts.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one processing cycle.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
	reg.MustRegister(
		m.tick, m.sources, m.frontier, m.loadedChunks, m.observers,
		m.conversions, m.sourcesRemoved, m.sourcesSkipped,
		m.bursts, m.burstBlocks, m.cycleDuration,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler serves the registry the collectors were registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SetGauges(tick uint64, sources, frontier, loadedChunks, observers int) {
	m.tick.Set(float64(tick))
	m.sources.Set(float64(sources))
	m.frontier.Set(float64(frontier))
	m.loadedChunks.Set(float64(loadedChunks))
	m.observers.Set(float64(observers))
}

func (m *Metrics) ObserveChange(cause string) {
	m.conversions.WithLabelValues(cause).Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration, removed, skipped int) {
	m.cycleDuration.Observe(d.Seconds())
	if removed > 0 {
		m.sourcesRemoved.Add(float64(removed))
	}
	if skipped > 0 {
		m.sourcesSkipped.Add(float64(skipped))
	}
}

func (m *Metrics) ObserveBurst(n int) {
	m.bursts.Inc()
	if n > 0 {
		m.burstBlocks.Add(float64(n))
	}
}
