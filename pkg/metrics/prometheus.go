package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"StockTracker/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	rowsIngested *prometheus.CounterVec
	rowsRejected *prometheus.CounterVec
	signals      *prometheus.CounterVec
	uploads      *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		rowsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocktracker_rows_ingested_total",
				Help: "Price rows stored from uploads",
			},
			[]string{"ticker"},
		),
		rowsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocktracker_rows_rejected_total",
				Help: "Upload rows rejected by validation or duplicate checks",
			},
			[]string{"code"},
		),
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocktracker_signals_computed_total",
				Help: "Signals produced by the rule engine",
			},
			[]string{"signal"},
		),
		uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocktracker_uploads_total",
				Help: "Uploads by outcome",
			},
			[]string{"status"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocktracker_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocktracker_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRowsIngested(ticker string, n int) {
	r.rowsIngested.WithLabelValues(ticker).Add(float64(n))
}

func (r *Recorder) RecordRowsRejected(code string, n int) {
	r.rowsRejected.WithLabelValues(code).Add(float64(n))
}

func (r *Recorder) RecordSignals(signal models.SignalType, n int) {
	r.signals.WithLabelValues(string(signal)).Add(float64(n))
}

// RecordUpload counts an upload by outcome (ok, partial, rejected).
func (r *Recorder) RecordUpload(status string) {
	r.uploads.WithLabelValues(status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything. Used by tests and tools that do not expose metrics.
type Nop struct{}

func (Nop) RecordRowsIngested(string, int)       {}
func (Nop) RecordRowsRejected(string, int)       {}
func (Nop) RecordSignals(models.SignalType, int) {}
func (Nop) RecordUpload(string)                  {}
func (Nop) RecordError(string)                   {}
func (Nop) RecordLatency(string, float64)        {}
