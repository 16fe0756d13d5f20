package badger

import (
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend *Backend
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a run history store on top of backend.
func NewRunRepository(backend *Backend) storage.RunRepository {
	return &RunRepository{
		backend: backend,
	}
}

// SaveRun persists the summary under its run ID.
func (r *RunRepository) SaveRun(ctx context.Context, summary *core.RunSummary) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeRunKey(summary.RunID), storage.MarshalRunSummary(summary)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRun retrieves the summary of runID.
func (r *RunRepository) GetRun(ctx context.Context, runID string) (*core.RunSummary, error) {
	var summary *core.RunSummary
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeRunKey(runID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			summary, unmarshalErr = storage.UnmarshalRunSummary(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// ListRuns returns all summaries, most recently started first.
func (r *RunRepository) ListRuns(ctx context.Context) ([]*core.RunSummary, error) {
	var runs []*core.RunSummary
	err := r.backend.scanPrefix([]byte(runPrefix), func(_, val []byte) error {
		summary, err := storage.UnmarshalRunSummary(val)
		if err != nil {
			return err
		}
		runs = append(runs, summary)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(runs, func(a, b *core.RunSummary) int {
		return b.Started.Compare(a.Started)
	})
	return runs, nil
}
