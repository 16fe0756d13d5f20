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

package source

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/poiesic/bulkload/core"
)

// Policy decides what happens to a row whose shape does not match the header.
type Policy int

const (
	// PolicySkip logs the row and continues with the next one.
	PolicySkip Policy = iota
	// PolicyAbort stops reading and returns the error.
	PolicyAbort
)

func (p Policy) String() string {
	if p == PolicyAbort {
		return "abort"
	}
	return "skip"
}

// ParsePolicy maps "skip" or "abort" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return PolicySkip, nil
	case "abort":
		return PolicyAbort, nil
	default:
		return PolicySkip, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// CSVSource lazily produces one RawRecord per data row.
// It is not restartable; reopen the input to read it again.
type CSVSource struct {
	reader   *csv.Reader
	header   []string
	expected []string
	policy   Policy
	onSkip   func(line int, err error)
	logger   *slog.Logger
	closer   io.Closer
	skipped  int
	line     int
	err      error
	done     bool
	closed   bool
}

// Option configures a CSVSource.
type Option func(*CSVSource) error

// WithDelimiter sets the field delimiter. Default is ','.
func WithDelimiter(delim rune) Option {
	return func(s *CSVSource) error {
		if delim == 0 || delim == '"' || delim == '\r' || delim == '\n' {
			return fmt.Errorf("%w: %q", ErrInvalidDelimiter, delim)
		}
		s.reader.Comma = delim
		return nil
	}
}

// WithExpectedHeader requires the header line to match exactly.
func WithExpectedHeader(header []string) Option {
	return func(s *CSVSource) error {
		s.expected = slices.Clone(header)
		return nil
	}
}

// WithMalformedPolicy sets how mismatched rows are handled. Default is PolicySkip.
func WithMalformedPolicy(p Policy) Option {
	return func(s *CSVSource) error {
		s.policy = p
		return nil
	}
}

// WithOnSkip registers a callback invoked for every skipped row.
func WithOnSkip(fn func(line int, err error)) Option {
	return func(s *CSVSource) error {
		s.onSkip = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *CSVSource) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewCSVSource reads the header from r and returns a source positioned at the first data row.
// Empty input yields a source with no rows.
func NewCSVSource(r io.Reader, opts ...Option) (*CSVSource, error) {
	reader := csv.NewReader(r)
	// Field counts are checked per row so the policy can decide.
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	s := &CSVSource{
		reader: reader,
		policy: PolicySkip,
		logger: slog.Default().With("component", "csv-source"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
			return s, nil
		}
		return nil, &core.MalformedInputError{Line: 1, Err: fmt.Errorf("reading header: %w", err)}
	}

	s.line = 1
	s.header = make([]string, len(header))
	for i, h := range header {
		s.header[i] = strings.TrimSpace(h)
	}
	// Strip a UTF-8 byte order mark written by spreadsheet exports
	if len(s.header) > 0 {
		s.header[0] = strings.TrimPrefix(s.header[0], "\ufeff")
	}

	if s.expected != nil && !slices.Equal(s.header, s.expected) {
		return nil, &core.MalformedInputError{
			Line: 1,
			Err:  fmt.Errorf("header %v does not match expected %v", s.header, s.expected),
		}
	}

	return s, nil
}

// Open opens the file at path and returns a source that owns it.
// Files ending in .gz are decompressed transparently.
func Open(path string, opts ...Option) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var r io.Reader = f
	closer := io.Closer(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		r = gz
		closer = multiCloser{gz, f}
	}

	s, err := NewCSVSource(r, opts...)
	if err != nil {
		closer.Close()
		return nil, err
	}
	s.closer = closer
	return s, nil
}

// Header returns the column names of the input.
func (s *CSVSource) Header() []string {
	return slices.Clone(s.header)
}

// Skipped returns the number of rows dropped under PolicySkip.
func (s *CSVSource) Skipped() int {
	return s.skipped
}

// Next returns the next data row, or io.EOF when the input is exhausted.
func (s *CSVSource) Next() (core.RawRecord, error) {
	if s.closed {
		return core.RawRecord{}, ErrSourceClosed
	}
	if s.err != nil {
		return core.RawRecord{}, s.err
	}

	for !s.done {
		row, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			break
		}

		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				// The reader repeats I/O errors on every call.
				s.done = true
				s.err = fmt.Errorf("%w after line %d: %w", ErrRead, s.line, err)
				return core.RawRecord{}, s.err
			}
			s.line = perr.Line
			if skipErr := s.reject(&core.MalformedInputError{Line: perr.StartLine, Err: err}); skipErr != nil {
				return core.RawRecord{}, skipErr
			}
			continue
		}

		line, _ := s.reader.FieldPos(0)
		s.line = line
		if len(row) != len(s.header) {
			merr := &core.MalformedInputError{Line: line, Want: len(s.header), Got: len(row)}
			if skipErr := s.reject(merr); skipErr != nil {
				return core.RawRecord{}, skipErr
			}
			continue
		}

		rec := core.RawRecord{Line: line, Fields: make([]core.Field, len(row))}
		for i, v := range row {
			rec.Fields[i] = core.Field{Name: s.header[i], Value: v}
		}
		return rec, nil
	}

	return core.RawRecord{}, io.EOF
}

// reject applies the malformed row policy. It returns a non-nil error only when reading must stop.
func (s *CSVSource) reject(err *core.MalformedInputError) error {
	if s.policy == PolicyAbort {
		s.done = true
		return err
	}
	s.skipped++
	s.logger.Warn("skipping malformed row", "line", err.Line, "err", err)
	if s.onSkip != nil {
		s.onSkip(err.Line, err)
	}
	return nil
}

// All returns an iterator over the remaining rows. Iteration ends after the first error.
func (s *CSVSource) All() iter.Seq2[core.RawRecord, error] {
	return func(yield func(core.RawRecord, error) bool) {
		for {
			rec, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the underlying file when the source owns one.
func (s *CSVSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
