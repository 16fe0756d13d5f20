package core

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is a compact content-derived identifier used for journal keys.
type ID uint64

// IDFromContent generates a deterministic ID from content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(data []byte) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentIDFromContent derives a stable document identifier from an encoded payload.
// Two records with identical payloads map to the same document, so resubmission is an upsert.
func DocumentIDFromContent(source []byte) string {
	h, _ := blake2b.New(16, nil)
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))
}

// NewRunID returns a fresh identifier for an ingestion run.
func NewRunID() string {
	return uuid.NewString()
}

// Field is a single named value of an input row.
type Field struct {
	Name  string
	Value string
}

// RawRecord is one row of delimited input with fields in header order.
type RawRecord struct {
	Line   int // 1-based line number in the input, header is line 1
	Fields []Field
}

// Get returns the value of the named field.
func (r RawRecord) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// IndexOperation is a single upsert against a target collection.
// An empty ID lets the endpoint assign one.
type IndexOperation struct {
	Target string
	ID     string
	Source []byte // JSON-encoded document
	Line   int
}

// Batch is an ordered group of operations submitted as one request.
type Batch struct {
	Seq        int
	Operations []IndexOperation
}

// Len returns the number of operations in the batch.
func (b Batch) Len() int {
	return len(b.Operations)
}

// Status classifies the result of a single document attempt.
type Status int

const (
	// StatusSuccess is terminal.
	StatusSuccess Status = iota + 1
	// StatusRetryable marks a transient failure eligible for another attempt.
	StatusRetryable
	// StatusFatal is terminal and never retried.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRetryable:
		return "retryable"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status ends a document's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFatal
}

// Outcome is the classified result of one document.
type Outcome struct {
	Operation IndexOperation
	Status    Status
	Detail    string
	Attempts  int
}

// RunSummary is the accounting of a single ingestion run.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	Target        string    `json:"target"`
	Submitted     int64     `json:"submitted"`
	Succeeded     int64     `json:"succeeded"`
	FatallyFailed int64     `json:"fatally_failed"`
	Retried       int64     `json:"retried"`
	RetryRounds   int64     `json:"retry_rounds"`
	Skipped       int64     `json:"skipped"`
	Abandoned     int64     `json:"abandoned"`
	SampleErrors  []string  `json:"sample_errors"`
	Incomplete    bool      `json:"incomplete"`
	Started       time.Time `json:"started"`
	Finished      time.Time `json:"finished"`
}

// Elapsed returns the wall-clock duration of the run.
func (s RunSummary) Elapsed() time.Duration {
	if s.Finished.IsZero() {
		return time.Since(s.Started)
	}
	return s.Finished.Sub(s.Started)
}

// FailureEntry is a fatally failed document kept for inspection and replay.
type FailureEntry struct {
	Key      ID
	RunID    string
	Target   string
	DocID    string
	Line     int
	Detail   string
	Attempts int
	Source   []byte
	FailedAt time.Time
}

// Operation rebuilds the index operation that produced this entry.
func (f *FailureEntry) Operation() IndexOperation {
	return IndexOperation{
		Target: f.Target,
		ID:     f.DocID,
		Source: f.Source,
		Line:   f.Line,
	}
}
