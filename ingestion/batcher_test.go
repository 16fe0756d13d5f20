package ingestion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/bulkload/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeOps(n int) []core.IndexOperation {
	ops := make([]core.IndexOperation, n)
	for i := range ops {
		ops[i] = core.IndexOperation{
			Target: "events",
			ID:     fmt.Sprintf("doc-%d", i),
			Source: []byte(fmt.Sprintf(`{"n":"%d"}`, i)),
			Line:   i + 2,
		}
	}
	return ops
}

func batchAll(b *Batcher, ops []core.IndexOperation) []core.Batch {
	var out []core.Batch
	for _, op := range ops {
		if batch, ok := b.Add(op); ok {
			out = append(out, batch)
		}
	}
	if batch, ok := b.Flush(); ok {
		out = append(out, batch)
	}
	return out
}

func TestBatcher_CountBound(t *testing.T) {
	ops := makeOps(12001)
	batches := batchAll(NewBatcher(5000, 0), ops)

	require.Len(t, batches, 3)
	assert.Equal(t, 5000, batches[0].Len())
	assert.Equal(t, 5000, batches[1].Len())
	assert.Equal(t, 2001, batches[2].Len())

	// Exhaustive and order-preserving
	var flat []core.IndexOperation
	for i, b := range batches {
		assert.Equal(t, i, b.Seq)
		flat = append(flat, b.Operations...)
	}
	assert.Equal(t, ops, flat)
}

func TestBatcher_ExactMultiple(t *testing.T) {
	batches := batchAll(NewBatcher(3, 0), makeOps(6))

	require.Len(t, batches, 2)
	assert.Equal(t, 3, batches[0].Len())
	assert.Equal(t, 3, batches[1].Len())
}

func TestBatcher_Empty(t *testing.T) {
	b := NewBatcher(10, 0)
	_, ok := b.Flush()
	assert.False(t, ok, "empty input gives zero batches")
}

func TestBatcher_ByteBound(t *testing.T) {
	ops := makeOps(10)
	size := OperationSize(ops[0])

	// Room for three operations per batch
	batches := batchAll(NewBatcher(100, 3*size+1), ops)

	require.Len(t, batches, 4)
	for _, b := range batches[:3] {
		assert.Equal(t, 3, b.Len())
	}
	assert.Equal(t, 1, batches[3].Len())
}

func TestBatcher_OversizedOperation(t *testing.T) {
	small := makeOps(3)
	big := core.IndexOperation{Target: "events", ID: "big", Source: []byte(`{"x":"` + strings.Repeat("a", 500) + `"}`)}
	ops := []core.IndexOperation{small[0], big, small[1], small[2]}

	batches := batchAll(NewBatcher(100, 200), ops)

	require.Len(t, batches, 3)
	assert.Equal(t, []core.IndexOperation{small[0]}, batches[0].Operations)
	assert.Equal(t, []core.IndexOperation{big}, batches[1].Operations)
	assert.Equal(t, []core.IndexOperation{small[1], small[2]}, batches[2].Operations)
}

func TestBatcher_SingleOperationBatches(t *testing.T) {
	batches := batchAll(NewBatcher(1, 0), makeOps(3))

	require.Len(t, batches, 3)
	for i, b := range batches {
		assert.Equal(t, 1, b.Len())
		assert.Equal(t, i, b.Seq)
	}
}

func TestOperationSize(t *testing.T) {
	op := core.IndexOperation{Target: "events", ID: "abc", Source: []byte(`{"a":"b"}`)}
	action := `{"index":{"_index":"events","_id":"abc"}}`

	assert.Equal(t, len(action)+1+len(op.Source)+1, OperationSize(op))
}
