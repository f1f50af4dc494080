package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles the Prometheus instruments for the session core.
// Register once at process start and share across manager and monitor.
type Collectors struct {
	ActiveSessions  prometheus.Gauge
	ExpiredSessions prometheus.Gauge
	PeakSessions    prometheus.Gauge
	CleanupRuns     prometheus.Counter
	CleanedSessions prometheus.Counter
	ScanDuration    prometheus.Histogram
	Alerts          *prometheus.CounterVec
}

// New creates the collectors and registers them on the given registerer.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sessiond_active_sessions",
			Help: "Sessions whose last access is within the configured max age",
		}),
		ExpiredSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sessiond_expired_sessions",
			Help: "Sessions past the configured max age but not yet reclaimed",
		}),
		PeakSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sessiond_peak_sessions",
			Help: "Highest total session count observed this process lifetime",
		}),
		CleanupRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessiond_cleanup_runs_total",
			Help: "Completed cleanup passes",
		}),
		CleanedSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessiond_cleaned_sessions_total",
			Help: "Session records deleted by cleanup",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sessiond_scan_duration_seconds",
			Help:    "Duration of full keyspace scans",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sessiond_alerts_total",
			Help: "Alerts emitted by the monitor",
		}, []string{"type", "severity"}),
	}

	reg.MustRegister(
		c.ActiveSessions,
		c.ExpiredSessions,
		c.PeakSessions,
		c.CleanupRuns,
		c.CleanedSessions,
		c.ScanDuration,
		c.Alerts,
	)
	return c
}

// ObserveScan records one scan's wall time.
func (c *Collectors) ObserveScan(start time.Time) {
	if c == nil {
		return
	}
	c.ScanDuration.Observe(time.Since(start).Seconds())
}

// RecordCleanup accounts one completed cleanup pass.
func (c *Collectors) RecordCleanup(deleted int) {
	if c == nil {
		return
	}
	c.CleanupRuns.Inc()
	c.CleanedSessions.Add(float64(deleted))
}

// RecordStats publishes the latest scan result.
func (c *Collectors) RecordStats(active, expired, peak int) {
	if c == nil {
		return
	}
	c.ActiveSessions.Set(float64(active))
	c.ExpiredSessions.Set(float64(expired))
	c.PeakSessions.Set(float64(peak))
}

// RecordAlert counts one emitted alert.
func (c *Collectors) RecordAlert(alertType, severity string) {
	if c == nil {
		return
	}
	c.Alerts.WithLabelValues(alertType, severity).Inc()
}
