package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cacheRequests *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	scanSymbols   prometheus.Counter
	candidates    *prometheus.CounterVec
	pending       prometheus.Gauge
	decisions     *prometheus.CounterVec
	monitored     *prometheus.GaugeVec
	fetchErrors   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder. Call once per process.
func New() *Recorder {
	return &Recorder{
		cacheRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_cache_requests_total",
				Help: "Cache lookups by cache name and result",
			},
			[]string{"cache", "hit"},
		),
		scanDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "signalflow_scan_pass_duration_seconds",
				Help:    "Duration of a full scanner pass",
				Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
			},
		),
		scanSymbols: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signalflow_scan_symbols_total",
				Help: "Symbols evaluated by the scanner",
			},
		),
		candidates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_candidates_total",
				Help: "Candidates generated by quality class",
			},
			[]string{"class"},
		),
		pending: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalflow_pending_candidates",
				Help: "Candidates currently awaiting confirmation",
			},
		),
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_decisions_total",
				Help: "Terminal decisions by outcome",
			},
			[]string{"outcome"},
		),
		monitored: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalflow_monitored_signals",
				Help: "Monitored signals by status",
			},
			[]string{"status"},
		),
		fetchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_fetch_errors_total",
				Help: "External fetch failures by operation and kind",
			},
			[]string{"op", "kind"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalflow_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordCacheRequest(cache string, hit bool) {
	r.cacheRequests.WithLabelValues(cache, strconv.FormatBool(hit)).Inc()
}

func (r *Recorder) RecordScanPass(duration time.Duration, scanned, candidates int) {
	r.scanDuration.Observe(duration.Seconds())
	r.scanSymbols.Add(float64(scanned))
}

func (r *Recorder) RecordCandidate(class string) {
	r.candidates.WithLabelValues(class).Inc()
}

func (r *Recorder) SetPending(n int) {
	r.pending.Set(float64(n))
}

func (r *Recorder) RecordDecision(outcome string) {
	r.decisions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SetMonitored(status string, n int) {
	r.monitored.WithLabelValues(status).Set(float64(n))
}

func (r *Recorder) RecordFetchError(op, kind string) {
	r.fetchErrors.WithLabelValues(op, kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
