package ingestion

import "github.com/poiesic/bulkload/core"

// actionOverhead is the fixed part of an index action line plus the two newlines
// framing an operation in a newline-delimited bulk body:
//
//	{"index":{"_index":"","_id":""}}\n{...}\n
const actionOverhead = len(`{"index":{"_index":"","_id":""}}`) + 2

// OperationSize estimates the bytes op adds to a bulk request body.
func OperationSize(op core.IndexOperation) int {
	return actionOverhead + len(op.Target) + len(op.ID) + len(op.Source)
}

// Batcher groups operations into batches bounded by count and, optionally, bytes.
// It is not safe for concurrent use; the pipeline's producer owns it.
type Batcher struct {
	maxCount int
	maxBytes int
	ops      []core.IndexOperation
	bytes    int
	seq      int
}

// NewBatcher creates a batcher. maxBytes == 0 disables the byte bound.
func NewBatcher(maxCount, maxBytes int) *Batcher {
	if maxCount < 1 {
		maxCount = 1
	}
	return &Batcher{
		maxCount: maxCount,
		maxBytes: maxBytes,
		ops:      make([]core.IndexOperation, 0, min(maxCount, 1024)),
	}
}

// Add buffers op and returns a closed batch when a bound is reached.
// An operation that alone exceeds the byte bound forms a batch of its own.
func (b *Batcher) Add(op core.IndexOperation) (core.Batch, bool) {
	size := OperationSize(op)

	var out core.Batch
	var ok bool
	if len(b.ops) > 0 && (len(b.ops) >= b.maxCount || (b.maxBytes > 0 && b.bytes+size > b.maxBytes)) {
		out, ok = b.release()
	}

	b.ops = append(b.ops, op)
	b.bytes += size

	if !ok && (len(b.ops) >= b.maxCount || (b.maxBytes > 0 && b.bytes >= b.maxBytes)) {
		out, ok = b.release()
	}
	return out, ok
}

// Flush returns the buffered partial batch. It returns false when nothing is buffered.
func (b *Batcher) Flush() (core.Batch, bool) {
	if len(b.ops) == 0 {
		return core.Batch{}, false
	}
	return b.release()
}

func (b *Batcher) release() (core.Batch, bool) {
	batch := core.Batch{Seq: b.seq, Operations: b.ops}
	b.seq++
	b.ops = make([]core.IndexOperation, 0, min(b.maxCount, 1024))
	b.bytes = 0
	return batch, true
}
