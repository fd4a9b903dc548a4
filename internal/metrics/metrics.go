// Package metrics holds the Prometheus counters of an ingest run and writes
// them to a node-exporter style text file.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "npuprof"
	subsystem = "ingest"
)

// Metrics is the counter set of one process. Each instance owns its registry
// so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	bytesRead   *prometheus.CounterVec
	decoded     *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	truncated   *prometheus.CounterVec
	ioFailures  *prometheus.CounterVec
	resets      *prometheus.CounterVec
	calibrated  *prometheus.CounterVec
	runDuration prometheus.Gauge
}

// New creates and registers the ingest counters.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		bytesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_read_total",
			Help:      "Bytes read from data files. Broken down by category.",
		}, []string{"category"}),
		decoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_decoded_total",
			Help:      "Records decoded and persisted. Broken down by category and record kind.",
		}, []string{"category", "kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_dropped_total",
			Help:      "Frames dropped for format errors. Broken down by category and reason.",
		}, []string{"category", "reason"}),
		truncated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "truncated_bytes_total",
			Help:      "Trailing bytes of finalized files that never formed a whole frame.",
		}, []string{"category"}),
		ioFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "io_failures_total",
			Help:      "Data files that could not be read. Broken down by category.",
		}, []string{"category"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rotation_resets_total",
			Help:      "Files reread from offset 0 after shrinking. Broken down by category.",
		}, []string{"category"}),
		calibrated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "calibrations_total",
			Help:      "Tasks moved to the next batch by backward calibration. Broken down by device.",
		}, []string{"device"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last ingest run.",
		}),
	}
	m.Registry.MustRegister(
		m.bytesRead, m.decoded, m.dropped, m.truncated,
		m.ioFailures, m.resets, m.calibrated, m.runDuration,
	)
	return m
}

// BytesRead adds n bytes read from the data files of category.
func (m *Metrics) BytesRead(category string, n int) {
	m.bytesRead.WithLabelValues(category).Add(float64(n))
}

// Decoded adds n persisted records of kind.
func (m *Metrics) Decoded(category, kind string, n int) {
	m.decoded.WithLabelValues(category, kind).Add(float64(n))
}

// Dropped adds n frames dropped for reason.
func (m *Metrics) Dropped(category, reason string, n int) {
	m.dropped.WithLabelValues(category, reason).Add(float64(n))
}

// Truncated adds n trailing bytes left behind by finalized files.
func (m *Metrics) Truncated(category string, n int64) {
	m.truncated.WithLabelValues(category).Add(float64(n))
}

// IOFailures adds n data files that could not be read.
func (m *Metrics) IOFailures(category string, n int) {
	m.ioFailures.WithLabelValues(category).Add(float64(n))
}

// Resets adds n files reread from the start after shrinking.
func (m *Metrics) Resets(category string, n int) {
	m.resets.WithLabelValues(category).Add(float64(n))
}

// Calibrated adds n tasks moved by backward calibration on device.
func (m *Metrics) Calibrated(device, n int) {
	m.calibrated.WithLabelValues(strconv.Itoa(device)).Add(float64(n))
}

// RunDuration records the duration of the last run. Callers measure it with
// their own clock.
func (m *Metrics) RunDuration(d time.Duration) {
	m.runDuration.Set(d.Seconds())
}

// WriteTextfile writes the registry to path in the Prometheus text format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
