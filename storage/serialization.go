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

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/bulkload/core"
)

// encoder writes mus-encoded fields into a buffer sized by a matching sizer.
type encoder struct {
	bs []byte
	n  int
}

func (e *encoder) string(v string) { e.n += ord.String.Marshal(v, e.bs[e.n:]) }
func (e *encoder) int64(v int64)   { e.n += varint.Int64.Marshal(v, e.bs[e.n:]) }

type sizer int

func (s *sizer) string(v string) { *s += sizer(ord.String.Size(v)) }
func (s *sizer) int64(v int64)   { *s += sizer(varint.Int64.Size(v)) }

// decoder reads fields in the order they were encoded and keeps the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) finish() error {
	if d.err != nil {
		return fmt.Errorf("%w: %v", ErrSerializationFailed, d.err)
	}
	if d.n != len(d.bs) {
		return fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(d.bs)-d.n)
	}
	return nil
}

// Zero times are stored as 0 so they survive a round trip.
func timeToMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microToTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Int64.Size(int64(id)))
	varint.Int64.Marshal(int64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	d := decoder{bs: data}
	id := core.ID(d.int64())
	return id, d.finish()
}

func writeFailureEntry(w interface {
	string(string)
	int64(int64)
}, e *core.FailureEntry) {
	w.int64(int64(e.Key))
	w.string(e.RunID)
	w.string(e.Target)
	w.string(e.DocID)
	w.int64(int64(e.Line))
	w.string(e.Detail)
	w.int64(int64(e.Attempts))
	w.string(string(e.Source))
	w.int64(timeToMicro(e.FailedAt))
}

// MarshalFailureEntry serializes a FailureEntry to bytes.
func MarshalFailureEntry(entry *core.FailureEntry) []byte {
	var size sizer
	writeFailureEntry(&size, entry)
	enc := encoder{bs: make([]byte, size)}
	writeFailureEntry(&enc, entry)
	return enc.bs
}

// UnmarshalFailureEntry deserializes a FailureEntry from bytes.
func UnmarshalFailureEntry(data []byte) (*core.FailureEntry, error) {
	d := decoder{bs: data}
	entry := &core.FailureEntry{
		Key:      core.ID(d.int64()),
		RunID:    d.string(),
		Target:   d.string(),
		DocID:    d.string(),
		Line:     int(d.int64()),
		Detail:   d.string(),
		Attempts: int(d.int64()),
		Source:   []byte(d.string()),
		FailedAt: microToTime(d.int64()),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return entry, nil
}

func writeRunSummary(w interface {
	string(string)
	int64(int64)
}, s *core.RunSummary) {
	w.string(s.RunID)
	w.string(s.Target)
	w.int64(s.Submitted)
	w.int64(s.Succeeded)
	w.int64(s.FatallyFailed)
	w.int64(s.Retried)
	w.int64(s.RetryRounds)
	w.int64(s.Skipped)
	w.int64(s.Abandoned)
	w.int64(int64(len(s.SampleErrors)))
	for _, msg := range s.SampleErrors {
		w.string(msg)
	}
	incomplete := int64(0)
	if s.Incomplete {
		incomplete = 1
	}
	w.int64(incomplete)
	w.int64(timeToMicro(s.Started))
	w.int64(timeToMicro(s.Finished))
}

// MarshalRunSummary serializes a RunSummary to bytes.
func MarshalRunSummary(summary *core.RunSummary) []byte {
	var size sizer
	writeRunSummary(&size, summary)
	enc := encoder{bs: make([]byte, size)}
	writeRunSummary(&enc, summary)
	return enc.bs
}

// UnmarshalRunSummary deserializes a RunSummary from bytes.
func UnmarshalRunSummary(data []byte) (*core.RunSummary, error) {
	d := decoder{bs: data}
	s := &core.RunSummary{
		RunID:         d.string(),
		Target:        d.string(),
		Submitted:     d.int64(),
		Succeeded:     d.int64(),
		FatallyFailed: d.int64(),
		Retried:       d.int64(),
		RetryRounds:   d.int64(),
		Skipped:       d.int64(),
		Abandoned:     d.int64(),
	}
	n := d.int64()
	if n < 0 || n > int64(len(data)) {
		return nil, fmt.Errorf("%w: invalid sample count %d", ErrSerializationFailed, n)
	}
	if n > 0 {
		s.SampleErrors = make([]string, 0, n)
		for i := int64(0); i < n && d.err == nil; i++ {
			s.SampleErrors = append(s.SampleErrors, d.string())
		}
	}
	s.Incomplete = d.int64() == 1
	s.Started = microToTime(d.int64())
	s.Finished = microToTime(d.int64())
	if err := d.finish(); err != nil {
		return nil, err
	}
	return s, nil
}
