package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRepository(t *testing.T) {
	journal, runs, backend, err := NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()
	require.NotNil(t, journal)

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	older := &core.RunSummary{RunID: "older", Target: "events", Submitted: 3, Succeeded: 3, Started: base, Finished: base.Add(time.Second)}
	newer := &core.RunSummary{RunID: "newer", Target: "events", Submitted: 2, Succeeded: 1, FatallyFailed: 1,
		SampleErrors: []string{"rejected"}, Started: base.Add(time.Hour), Finished: base.Add(time.Hour + time.Second)}

	require.NoError(t, runs.SaveRun(ctx, older))
	require.NoError(t, runs.SaveRun(ctx, newer))

	got, err := runs.GetRun(ctx, "newer")
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	_, err = runs.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	list, err := runs.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].RunID)
	assert.Equal(t, "older", list[1].RunID)

	// Saving again replaces the stored summary
	older.Incomplete = true
	older.Abandoned = 0
	require.NoError(t, runs.SaveRun(ctx, older))
	got, err = runs.GetRun(ctx, "older")
	require.NoError(t, err)
	assert.True(t, got.Incomplete)
}
