// Package metrics exposes case measurements and outcomes as Prometheus
// metrics.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/smazurov/startstop/internal/measure"
)

const namespace = "startstop"

// Collector owns a registry with the per-case gauges and result counters.
type Collector struct {
	registry *prometheus.Registry

	buildMs   *prometheus.GaugeVec
	firstOKMs *prometheus.GaugeVec
	startedMs *prometheus.GaugeVec
	stoppedMs *prometheus.GaugeVec
	rssKB     *prometheus.GaugeVec
	fds       *prometheus.GaugeVec

	cases    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := []string{"app", "mode"}

	gauge := func(name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "measurement",
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Collector{
		registry:  reg,
		buildMs:   gauge("build_ms", "Build duration of the last successful case"),
		firstOKMs: gauge("time_to_first_ok_ms", "Time from launch to first successful probe"),
		startedMs: gauge("started_ms", "Start duration reported by the application"),
		stoppedMs: gauge("stopped_ms", "Stop duration reported by the application"),
		rssKB:     gauge("rss_kb", "Resident memory sampled after readiness"),
		fds:       gauge("open_fds", "Open file descriptors sampled after readiness"),
		cases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "case",
			Name:      "total",
			Help:      "Completed cases by result",
		}, []string{"app", "mode", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "case",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a case including build and cleanup",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"app", "mode"}),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveRecord sets the measurement gauges for the record's case.
func (c *Collector) ObserveRecord(r measure.Record) {
	c.buildMs.WithLabelValues(r.App, r.Mode).Set(float64(r.BuildMs))
	c.firstOKMs.WithLabelValues(r.App, r.Mode).Set(float64(r.TimeToFirstOKMs))
	c.startedMs.WithLabelValues(r.App, r.Mode).Set(float64(r.StartedMs))
	c.stoppedMs.WithLabelValues(r.App, r.Mode).Set(float64(r.StoppedMs))
	c.rssKB.WithLabelValues(r.App, r.Mode).Set(float64(r.RSSKB))
	c.fds.WithLabelValues(r.App, r.Mode).Set(float64(r.FDs))
}

// ObserveResult counts a finished case.
func (c *Collector) ObserveResult(app, mode, result string, d time.Duration) {
	c.cases.WithLabelValues(app, mode, result).Inc()
	c.duration.WithLabelValues(app, mode).Observe(d.Seconds())
}

// WriteTextfile writes the registry in text exposition format, suitable for
// the node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
