package metrics

import (
	"errors"
	"time"

	"github.com/poiesic/bulkload/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bulkload"

// Recorder receives ingestion events.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// ObserveOutcome records a terminal document outcome.
	ObserveOutcome(status core.Status, attempts int)
	// ObserveRequest records one bulk request and how it ended.
	ObserveRequest(docs int, elapsed time.Duration, err error)
	// ObserveRetry records a resubmission round of docs documents.
	ObserveRetry(docs int)
	// ObserveSkipped records malformed rows dropped by the source.
	ObserveSkipped(n int)
	// ObserveAbandoned records documents left pending by cancellation.
	ObserveAbandoned(n int)
}

// QueryRecorder receives load-test query events.
type QueryRecorder interface {
	ObserveQuery(elapsed time.Duration, ok bool)
}

// Nop discards every event.
type Nop struct{}

func (Nop) ObserveOutcome(core.Status, int)          {}
func (Nop) ObserveRequest(int, time.Duration, error) {}
func (Nop) ObserveRetry(int)                         {}
func (Nop) ObserveSkipped(int)                       {}
func (Nop) ObserveAbandoned(int)                     {}
func (Nop) ObserveQuery(time.Duration, bool)         {}

var (
	_ Recorder      = Nop{}
	_ QueryRecorder = Nop{}
	_ Recorder      = (*Metrics)(nil)
	_ QueryRecorder = (*Metrics)(nil)
)

// Metrics holds the Prometheus collectors for ingestion and load tests.
type Metrics struct {
	documents       *prometheus.CounterVec
	attempts        prometheus.Histogram
	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	requestDocs     prometheus.Histogram
	retried         prometheus.Counter
	retryRounds     prometheus.Counter
	skipped         prometheus.Counter
	abandoned       prometheus.Counter
	queries         *prometheus.CounterVec
	queryDuration   prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents that reached a terminal outcome",
		}, []string{"status"}),
		attempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_attempts",
			Help:      "Submission attempts per resolved document",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_requests_total",
			Help:      "Bulk requests by result",
		}, []string{"result"}),
		requestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_request_duration_seconds",
			Help:      "Latency of bulk requests",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		requestDocs: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_request_documents",
			Help:      "Documents carried by each bulk request",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		retried: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_retried_total",
			Help:      "Document resubmissions",
		}),
		retryRounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_rounds_total",
			Help:      "Resubmission rounds across all batches",
		}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Malformed input rows dropped",
		}),
		abandoned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_abandoned_total",
			Help:      "Documents left pending when a run was cancelled",
		}),
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loadtest",
			Name:      "queries_total",
			Help:      "Load-test search requests by result",
		}, []string{"result"}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loadtest",
			Name:      "query_duration_seconds",
			Help:      "Latency of load-test search requests",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
	}
}

func (m *Metrics) ObserveOutcome(status core.Status, attempts int) {
	m.documents.WithLabelValues(status.String()).Inc()
	m.attempts.Observe(float64(attempts))
}

func (m *Metrics) ObserveRequest(docs int, elapsed time.Duration, err error) {
	m.requests.WithLabelValues(requestResult(err)).Inc()
	m.requestDuration.Observe(elapsed.Seconds())
	m.requestDocs.Observe(float64(docs))
}

func (m *Metrics) ObserveRetry(docs int) {
	m.retried.Add(float64(docs))
	m.retryRounds.Inc()
}

func (m *Metrics) ObserveSkipped(n int) {
	m.skipped.Add(float64(n))
}

func (m *Metrics) ObserveAbandoned(n int) {
	m.abandoned.Add(float64(n))
}

func (m *Metrics) ObserveQuery(elapsed time.Duration, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.queries.WithLabelValues(result).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
}

func requestResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrTransientEndpoint):
		return "transient"
	case errors.Is(err, core.ErrFatalConfiguration):
		return "fatal"
	case errors.Is(err, core.ErrPermanentDocument):
		return "rejected"
	default:
		return "error"
	}
}
