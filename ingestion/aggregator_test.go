package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/metrics"
	"github.com/poiesic/bulkload/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcome(line int, status core.Status, detail string) core.Outcome {
	return core.Outcome{
		Operation: core.IndexOperation{Target: "events", ID: fmt.Sprintf("doc-%d", line), Source: []byte(`{}`), Line: line},
		Status:    status,
		Detail:    detail,
		Attempts:  1,
	}
}

func TestAggregator_Accounting(t *testing.T) {
	agg := NewAggregator("run-1", "events")

	agg.Submitted(4)
	agg.Record(outcome(2, core.StatusSuccess, ""))
	agg.Record(outcome(3, core.StatusSuccess, ""))
	agg.Record(outcome(4, core.StatusFatal, "rejected"))
	agg.Retried(1)
	agg.Record(outcome(5, core.StatusSuccess, ""))
	agg.Skipped(2)

	s := agg.Finalize(false)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, "events", s.Target)
	assert.Equal(t, int64(4), s.Submitted)
	assert.Equal(t, int64(3), s.Succeeded)
	assert.Equal(t, int64(1), s.FatallyFailed)
	assert.Equal(t, int64(1), s.Retried)
	assert.Equal(t, int64(1), s.RetryRounds)
	assert.Equal(t, int64(2), s.Skipped)
	assert.Equal(t, []string{"line 4: rejected"}, s.SampleErrors)
	assert.False(t, s.Incomplete)
	assert.False(t, s.Finished.Before(s.Started))
	require.NoError(t, core.ValidateSummary(s))
}

func TestAggregator_RejectsRetryable(t *testing.T) {
	agg := NewAggregator("run-1", "events")
	agg.Submitted(1)
	agg.Record(outcome(2, core.StatusRetryable, "busy"))

	s := agg.Snapshot()
	assert.Zero(t, s.Succeeded)
	assert.Zero(t, s.FatallyFailed)
}

func TestAggregator_SampleSize(t *testing.T) {
	agg := NewAggregator("run-1", "events", WithSampleSize(2))
	for i := 0; i < 5; i++ {
		agg.Record(outcome(i+2, core.StatusFatal, "bad"))
	}

	s := agg.Snapshot()
	assert.Equal(t, int64(5), s.FatallyFailed)
	assert.Len(t, s.SampleErrors, 2)
}

func TestAggregator_SnapshotIsCopy(t *testing.T) {
	agg := NewAggregator("run-1", "events")
	agg.Record(outcome(2, core.StatusFatal, "bad"))

	s := agg.Snapshot()
	s.SampleErrors[0] = "changed"
	assert.Equal(t, "line 2: bad", agg.Snapshot().SampleErrors[0])
}

func TestAggregator_FinalizeIsIdempotent(t *testing.T) {
	agg := NewAggregator("run-1", "events")
	agg.Submitted(1)
	agg.Record(outcome(2, core.StatusSuccess, ""))

	first := agg.Finalize(false)

	// Mutations after finalization are ignored
	agg.Submitted(5)
	agg.Record(outcome(3, core.StatusSuccess, ""))
	agg.Abandon([]core.IndexOperation{{Line: 4}})

	second := agg.Finalize(true)
	assert.Equal(t, first, second)
}

func TestAggregator_Abandon(t *testing.T) {
	agg := NewAggregator("run-1", "events")
	agg.Submitted(3)
	agg.Record(outcome(2, core.StatusSuccess, ""))
	agg.Abandon([]core.IndexOperation{{Line: 3}, {Line: 4}})
	agg.Abandon(nil)

	s := agg.Finalize(true)
	assert.Equal(t, int64(2), s.Abandoned)
	assert.True(t, s.Incomplete)
	require.NoError(t, core.ValidateSummary(s))
}

func TestAggregator_HasSucceeded(t *testing.T) {
	agg := NewAggregator("run-1", "events")
	assert.False(t, agg.HasSucceeded())

	agg.Record(outcome(2, core.StatusFatal, "bad"))
	assert.False(t, agg.HasSucceeded())

	agg.Record(outcome(3, core.StatusSuccess, ""))
	assert.True(t, agg.HasSucceeded())
}

func TestAggregator_Concurrent(t *testing.T) {
	agg := NewAggregator("run-1", "events")

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				agg.Submitted(1)
				status := core.StatusSuccess
				if i%10 == 0 {
					status = core.StatusFatal
				}
				agg.Record(outcome(w*1000+i, status, "x"))
			}
		}(w)
	}
	wg.Wait()

	s := agg.Finalize(false)
	assert.Equal(t, int64(8000), s.Submitted)
	assert.Equal(t, int64(7200), s.Succeeded)
	assert.Equal(t, int64(800), s.FatallyFailed)
	require.NoError(t, core.ValidateSummary(s))
}

func TestAggregator_Sinks(t *testing.T) {
	journal, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	var progress bytes.Buffer
	tracker := NewProgressTracker(&progress, 0)
	tracker.Start()

	var hooked []core.Outcome
	agg := NewAggregator("run-7", "events",
		WithFailureJournal(journal),
		WithRecorder(metrics.New(prometheus.NewRegistry())),
		WithProgressTracker(tracker),
		WithOutcomeHook(func(o core.Outcome) { hooked = append(hooked, o) }),
	)

	agg.Submitted(2)
	agg.Record(outcome(2, core.StatusSuccess, ""))
	agg.Record(outcome(3, core.StatusFatal, "document rejected (status 400): bad"))
	agg.Finalize(false)

	entries, err := journal.GetFailures(context.Background(), "run-7")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc-3", entries[0].DocID)
	assert.Equal(t, 3, entries[0].Line)
	assert.Equal(t, "events", entries[0].Target)
	assert.Equal(t, "document rejected (status 400): bad", entries[0].Detail)

	assert.Len(t, hooked, 2)
	assert.Contains(t, progress.String(), "2 documents (1 failed)")
}
