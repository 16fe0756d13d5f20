package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/metrics"
	"github.com/poiesic/bulkload/storage"
)

// Aggregator accumulates the accounting of a run.
// All methods are safe for concurrent use.
type Aggregator struct {
	mu         sync.Mutex
	summary    core.RunSummary
	sampleSize int
	finalized  bool

	recorder  metrics.Recorder
	journal   storage.FailureJournal
	progress  *ProgressTracker
	onOutcome func(core.Outcome)
	logger    *slog.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithSampleSize sets how many fatal error details the summary keeps.
// Default is 50.
func WithSampleSize(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n < 0 {
			n = 0
		}
		a.sampleSize = n
	}
}

// WithRecorder forwards every event to r.
func WithRecorder(r metrics.Recorder) AggregatorOption {
	return func(a *Aggregator) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithFailureJournal persists every fatal outcome to j.
func WithFailureJournal(j storage.FailureJournal) AggregatorOption {
	return func(a *Aggregator) {
		a.journal = j
	}
}

// WithProgressTracker counts every terminal outcome on p.
func WithProgressTracker(p *ProgressTracker) AggregatorOption {
	return func(a *Aggregator) {
		a.progress = p
	}
}

// WithOutcomeHook calls fn with every terminal outcome.
func WithOutcomeHook(fn func(core.Outcome)) AggregatorOption {
	return func(a *Aggregator) {
		a.onOutcome = fn
	}
}

// WithAggregatorLogger sets a custom logger.
func WithAggregatorLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAggregator creates an aggregator for the run runID writing to target.
func NewAggregator(runID, target string, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		summary: core.RunSummary{
			RunID:   runID,
			Target:  target,
			Started: time.Now().UTC(),
		},
		sampleSize: 50,
		recorder:   metrics.Nop{},
		logger:     slog.Default().With("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record accounts for a terminal outcome. Retryable outcomes are rejected.
func (a *Aggregator) Record(o core.Outcome) {
	if !o.Status.Terminal() {
		a.logger.Error("ignoring non-terminal outcome", "line", o.Operation.Line, "status", o.Status)
		return
	}

	a.mu.Lock()
	if a.finalized {
		a.mu.Unlock()
		a.logger.Warn("outcome recorded after finalization", "line", o.Operation.Line, "status", o.Status)
		return
	}
	if o.Status == core.StatusSuccess {
		a.summary.Succeeded++
	} else {
		a.summary.FatallyFailed++
		if len(a.summary.SampleErrors) < a.sampleSize {
			a.summary.SampleErrors = append(a.summary.SampleErrors, fmt.Sprintf("line %d: %s", o.Operation.Line, o.Detail))
		}
	}
	runID := a.summary.RunID
	a.mu.Unlock()

	a.recorder.ObserveOutcome(o.Status, o.Attempts)
	if a.progress != nil {
		a.progress.Resolved(o.Status == core.StatusFatal)
	}

	if o.Status == core.StatusFatal {
		a.logger.Debug("document failed", "line", o.Operation.Line, "id", o.Operation.ID, "attempts", o.Attempts, "detail", o.Detail)
		if a.journal != nil {
			entry := &core.FailureEntry{
				RunID:    runID,
				Target:   o.Operation.Target,
				DocID:    o.Operation.ID,
				Line:     o.Operation.Line,
				Detail:   o.Detail,
				Attempts: o.Attempts,
				Source:   o.Operation.Source,
			}
			if err := a.journal.AddFailures(context.Background(), entry); err != nil {
				a.logger.Error("error journaling failed document", "line", o.Operation.Line, "err", err)
			}
		}
	}

	if a.onOutcome != nil {
		a.onOutcome(o)
	}
}

// Submitted counts n operations handed to the submitter.
func (a *Aggregator) Submitted(n int) {
	a.mutate("submitted", func(s *core.RunSummary) { s.Submitted += int64(n) })
}

// Retried counts one resubmission round carrying docs documents.
func (a *Aggregator) Retried(docs int) {
	if a.mutate("retried", func(s *core.RunSummary) {
		s.Retried += int64(docs)
		s.RetryRounds++
	}) {
		a.recorder.ObserveRetry(docs)
	}
}

// Skipped counts n malformed rows dropped by the source.
func (a *Aggregator) Skipped(n int) {
	if n == 0 {
		return
	}
	if a.mutate("skipped", func(s *core.RunSummary) { s.Skipped += int64(n) }) {
		a.recorder.ObserveSkipped(n)
	}
}

// Abandon accounts for operations left pending when the run was cancelled.
func (a *Aggregator) Abandon(ops []core.IndexOperation) {
	if len(ops) == 0 {
		return
	}
	if a.mutate("abandoned", func(s *core.RunSummary) { s.Abandoned += int64(len(ops)) }) {
		a.recorder.ObserveAbandoned(len(ops))
		a.logger.Info("abandoned pending documents", "count", len(ops), "first_line", ops[0].Line)
	}
}

// HasSucceeded reports whether any document of the run was written.
func (a *Aggregator) HasSucceeded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary.Succeeded > 0
}

// Snapshot returns a copy of the current counters.
func (a *Aggregator) Snapshot() core.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copySummary()
}

// Finalize stamps the finish time and freezes the summary. Later calls return the
// same summary; later mutations are ignored.
func (a *Aggregator) Finalize(incomplete bool) core.RunSummary {
	a.mu.Lock()
	if a.finalized {
		defer a.mu.Unlock()
		return a.copySummary()
	}
	a.finalized = true
	a.summary.Incomplete = incomplete
	a.summary.Finished = time.Now().UTC()
	summary := a.copySummary()
	a.mu.Unlock()

	if a.progress != nil {
		a.progress.Finish()
	}
	if err := core.ValidateSummary(summary); err != nil {
		a.logger.Error("run accounting is inconsistent", "err", err)
	}
	return summary
}

// mutate applies fn unless the summary is final. Must be called without the lock.
func (a *Aggregator) mutate(what string, fn func(*core.RunSummary)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		a.logger.Warn("update after finalization ignored", "counter", what)
		return false
	}
	fn(&a.summary)
	return true
}

// copySummary deep-copies the summary. Must be called with lock held.
func (a *Aggregator) copySummary() core.RunSummary {
	s := a.summary
	s.SampleErrors = slices.Clone(a.summary.SampleErrors)
	return s
}
