package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the exporter's own counters, histograms, and gauges. Station
// gauges live in the registry package.
type Metrics struct {
	APIErrors       prometheus.Counter
	TimestampErrors prometheus.Counter
	PrunedSeries    prometheus.Counter
	SinkErrors      *prometheus.CounterVec // labels: sink={kafka,mqtt}
	Stations        prometheus.Gauge
	PollerRunning   prometheus.Gauge
	PollDuration    prometheus.Histogram
}

// NewMetrics creates and registers all exporter metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.APIErrors,
		m.TimestampErrors,
		m.PrunedSeries,
		m.SinkErrors,
		m.Stations,
		m.PollerRunning,
		m.PollDuration,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		// Name kept from the original exporter so existing dashboards keep working.
		APIErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buienradar_api_errors_total",
			Help: "The number of errors encountered while accessing the Buienradar API",
		}),
		TimestampErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buienradar_exporter",
			Name:      "timestamp_errors_total",
			Help:      "Sunrise or sunset values that could not be parsed.",
		}),
		PrunedSeries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buienradar_exporter",
			Name:      "pruned_series_total",
			Help:      "Station series removed because they were absent from the latest feed.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buienradar_exporter",
			Name:      "sink_errors_total",
			Help:      "Failed snapshot publications by sink.",
		}, []string{"sink"}),
		Stations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "buienradar_exporter",
			Name:      "stations",
			Help:      "Number of stations in the latest fetch.",
		}),
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "buienradar_exporter",
			Name:      "poller_running",
			Help:      "1 when the poll loop is active, 0 when shut down.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "buienradar_exporter",
			Name:      "poll_duration_seconds",
			Help:      "Duration of a complete fetch and update cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
