package metrics

import (
	"strconv"
	"sync"

	"github.com/Brandon-Parker9/fractal/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Metrics are registered lazily on first use, so constructing a collector that
// is never exercised leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	rowsComputed     *prometheus.CounterVec
	computeDuration  *prometheus.HistogramVec
	contributions    *prometheus.CounterVec
	contributionWait prometheus.Histogram
	rowsEncoded      prometheus.Counter
	transferBytes    *prometheus.CounterVec
	transfers        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	workers          prometheus.Gauge
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace (defaults to "fractal" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "fractal"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.rowsComputed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "kernel",
			Name:      "rows_computed_total",
			Help:      "Rows of iteration counts computed, by rank.",
		}, []string{"rank"})

		p.computeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "kernel",
			Name:      "compute_seconds",
			Help:      "Time spent computing a rank's row block.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms .. ~4.4min
		}, []string{"rank"})

		p.contributions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "collector",
			Name:      "contribution_elements_total",
			Help:      "Iteration counts handed to the sink, by contributing rank.",
		}, []string{"rank"})

		p.contributionWait = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "collector",
			Name:      "wait_seconds",
			Help:      "Time the coordinator waited for each contribution.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		})

		p.rowsEncoded = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "encoder",
			Name:      "rows_encoded_total",
			Help:      "Image rows written to the PNG stream.",
		})

		p.transferBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transport",
			Name:      "bytes_total",
			Help:      "Payload bytes transferred, by direction.",
		}, []string{"direction"})

		p.transfers = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transport",
			Name:      "transfers_total",
			Help:      "Transfers by direction and result (success|failure).",
		}, []string{"direction", "result"})

		p.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Elapsed time between the start and end barriers.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 3, 12),
		})

		p.workers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "run",
			Name:      "workers",
			Help:      "Number of ranks in the most recent run.",
		})

		p.reg.MustRegister(
			p.rowsComputed,
			p.computeDuration,
			p.contributions,
			p.contributionWait,
			p.rowsEncoded,
			p.transferBytes,
			p.transfers,
			p.runDuration,
			p.workers,
		)
	})
}

// RecordRowsComputed counts rows and observes compute time for a rank.
func (p *PrometheusCollector) RecordRowsComputed(rank int, rows int, duration float64) {
	p.ensureRegistered()
	label := strconv.Itoa(rank)
	p.rowsComputed.WithLabelValues(label).Add(float64(rows))
	p.computeDuration.WithLabelValues(label).Observe(duration)
}

// RecordContribution counts elements collected from a rank and observes the wait.
func (p *PrometheusCollector) RecordContribution(rank int, elements int, wait float64) {
	p.ensureRegistered()
	p.contributions.WithLabelValues(strconv.Itoa(rank)).Add(float64(elements))
	p.contributionWait.Observe(wait)
}

// RecordRowsEncoded counts rows written by the encoder.
func (p *PrometheusCollector) RecordRowsEncoded(rows int) {
	p.ensureRegistered()
	p.rowsEncoded.Add(float64(rows))
}

// RecordTransfer records a transport send or receive.
func (p *PrometheusCollector) RecordTransfer(direction string, bytes int, success bool) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.transfers.WithLabelValues(direction, result).Inc()
	if success {
		p.transferBytes.WithLabelValues(direction).Add(float64(bytes))
	}
}

// RecordRun observes a completed run.
func (p *PrometheusCollector) RecordRun(workers int, duration float64) {
	p.ensureRegistered()
	p.workers.Set(float64(workers))
	p.runDuration.Observe(duration)
}
