// Package metrics exposes run metrics of a reconstruction in the node
// exporter textfile format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "odect"

// Metrics of a single run. Methods are safe to call on a nil receiver so
// that components can run without metrics.
type Metrics struct {
	Registry *prometheus.Registry

	daysFetched   prometheus.Counter
	daysReused    prometheus.Counter
	dayFailures   prometheus.Counter
	zoneFailures  *prometheus.CounterVec
	gaps          *prometheus.CounterVec
	persistErrors prometheus.Counter
	meanAEF       prometheus.Gauge
	lastRun       prometheus.Gauge
}

// New returns metrics registered on a new registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		daysFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_fetched_total",
			Help:      "Number of days reconstructed from upstream reports.",
		}),
		daysReused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_reused_total",
			Help:      "Number of days already present in the generation store.",
		}),
		dayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "day_failures_total",
			Help:      "Number of days that could not be reconstructed.",
		}),
		zoneFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_fetch_failures_total",
			Help:      "Number of zone-days whose upstream data was unavailable.",
		}, []string{"zone"}),
		gaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zero_filled_positions_total",
			Help:      "Number of grid positions zero filled because of missing data.",
		}, []string{"zone", "type"}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Number of failed writes to the generation store.",
		}),
		meanAEF: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "average_emission_factor_kg_per_mwh",
			Help:      "Average emission factor over the requested span.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
	}

	m.Registry.MustRegister(
		m.daysFetched, m.daysReused, m.dayFailures, m.zoneFailures,
		m.gaps, m.persistErrors, m.meanAEF, m.lastRun,
	)

	return m
}

// DayFetched counts a reconstructed day.
func (m *Metrics) DayFetched() {
	if m != nil {
		m.daysFetched.Inc()
	}
}

// DayReused counts a day served from the store.
func (m *Metrics) DayReused() {
	if m != nil {
		m.daysReused.Inc()
	}
}

// DayFailed counts a day that could not be reconstructed.
func (m *Metrics) DayFailed() {
	if m != nil {
		m.dayFailures.Inc()
	}
}

// ZoneFailed counts an unavailable zone-day.
func (m *Metrics) ZoneFailed(zone string) {
	if m != nil {
		m.zoneFailures.WithLabelValues(zone).Inc()
	}
}

// Gaps counts zero filled positions.
func (m *Metrics) Gaps(zone, typ string, n int) {
	if m != nil && n > 0 {
		m.gaps.WithLabelValues(zone, typ).Add(float64(n))
	}
}

// PersistFailed counts a failed write.
func (m *Metrics) PersistFailed() {
	if m != nil {
		m.persistErrors.Inc()
	}
}

// Finish records the span AEF and the completion time of the run.
func (m *Metrics) Finish(aef float64) {
	if m != nil {
		m.meanAEF.Set(aef)
		m.lastRun.SetToCurrentTime()
	}
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}

	return prometheus.WriteToTextfile(path, m.Registry)
}
