package badger

import (
	"encoding/binary"

	"github.com/poiesic/bulkload/core"
)

// Key prefixes for different data types
const (
	failurePrefix = "dlq:"
	runPrefix     = "run:"
)

// makeFailureKey generates a key for a journal entry.
// Format: prefix + 8-byte big-endian key so iteration follows key order.
func makeFailureKey(id core.ID) []byte {
	buf := make([]byte, len(failurePrefix)+8)
	offset := copy(buf, failurePrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeRunKey generates a key for a run summary.
func makeRunKey(runID string) []byte {
	return []byte(runPrefix + runID)
}

// failureKeyFor derives a journal key from the document coordinates, so a document
// that fails again replaces its earlier entry.
func failureKeyFor(entry *core.FailureEntry) core.ID {
	buf := make([]byte, 0, len(entry.Target)+len(entry.DocID)+len(entry.Source)+2)
	buf = append(buf, entry.Target...)
	buf = append(buf, 0)
	buf = append(buf, entry.DocID...)
	buf = append(buf, 0)
	buf = append(buf, entry.Source...)
	return core.IDFromContent(buf)
}
