// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/storage"
)

// FailureJournal implements storage.FailureJournal for BadgerDB.
type FailureJournal struct {
	backend *Backend
}

var _ storage.FailureJournal = (*FailureJournal)(nil)

// newFailureJournal is an internal constructor that returns the concrete type.
func newFailureJournal(backend *Backend) *FailureJournal {
	return &FailureJournal{
		backend: backend,
	}
}

// NewFailureJournal creates a dead-letter journal on top of backend.
func NewFailureJournal(backend *Backend) storage.FailureJournal {
	return newFailureJournal(backend)
}

// AddFailures persists entries, assigning keys and timestamps where missing.
func (j *FailureJournal) AddFailures(ctx context.Context, entries ...*core.FailureEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return j.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, entry := range entries {
			if entry.Key == 0 {
				entry.Key = failureKeyFor(entry)
			}
			if entry.FailedAt.IsZero() {
				entry.FailedAt = time.Now().UTC().Truncate(time.Microsecond)
			}
			if err := wb.Set(makeFailureKey(entry.Key), storage.MarshalFailureEntry(entry)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetFailures returns entries in key order, filtered by runID when it is not empty.
func (j *FailureJournal) GetFailures(ctx context.Context, runID string) ([]*core.FailureEntry, error) {
	var entries []*core.FailureEntry
	err := j.backend.scanPrefix([]byte(failurePrefix), func(_, val []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := storage.UnmarshalFailureEntry(val)
		if err != nil {
			return err
		}
		if runID == "" || entry.RunID == runID {
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteFailures removes entries by key.
func (j *FailureJournal) DeleteFailures(ctx context.Context, keys ...core.ID) error {
	if len(keys) == 0 {
		return nil
	}
	return j.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, key := range keys {
			if err := wb.Delete(makeFailureKey(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountFailures returns the number of stored entries.
func (j *FailureJournal) CountFailures(ctx context.Context) (int, error) {
	count := 0
	err := j.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(failurePrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}
