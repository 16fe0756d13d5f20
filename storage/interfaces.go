package storage

import (
	"context"

	"github.com/poiesic/bulkload/core"
)

// FailureJournal persists documents that failed fatally so they can be inspected
// and replayed. Implementations must be thread-safe.
type FailureJournal interface {
	// AddFailures stores entries, keyed by entry.Key.
	// An entry whose key already exists replaces the stored one, so a document that
	// fails again in a later run keeps a single entry pointing at the latest run.
	// Entries with a zero Key get one derived from their target, document ID and payload.
	AddFailures(ctx context.Context, entries ...*core.FailureEntry) error

	// GetFailures returns stored entries ordered by key.
	// An empty runID returns the entries of every run.
	GetFailures(ctx context.Context, runID string) ([]*core.FailureEntry, error)

	// DeleteFailures removes entries by key. Missing keys are ignored.
	DeleteFailures(ctx context.Context, keys ...core.ID) error

	// CountFailures returns the number of stored entries.
	CountFailures(ctx context.Context) (int, error)
}

// RunRepository stores the final summary of each ingestion run.
type RunRepository interface {
	// SaveRun stores or replaces the summary of summary.RunID.
	SaveRun(ctx context.Context, summary *core.RunSummary) error

	// GetRun returns the summary of a run.
	// Returns ErrNotFound if no run has that ID.
	GetRun(ctx context.Context, runID string) (*core.RunSummary, error)

	// ListRuns returns every stored summary, most recently started first.
	ListRuns(ctx context.Context) ([]*core.RunSummary, error)
}
