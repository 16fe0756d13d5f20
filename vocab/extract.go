package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/bulkload/core"
)

// DefaultColumn is the text column read when none is configured.
const DefaultColumn = "abstract"

// DefaultMinWords is how many words are collected before extraction stops.
const DefaultMinWords = 10000

// Source is a header-aware record stream, such as a source.CSVSource.
type Source interface {
	Header() []string
	Next() (core.RawRecord, error)
}

// Extractor collects words from one text column.
type Extractor struct {
	column   string
	minWords int
	logger   *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithColumn sets the text column. Default is DefaultColumn.
func WithColumn(name string) Option {
	return func(e *Extractor) {
		if name != "" {
			e.column = name
		}
	}
}

// WithMinWords sets the word count after which no further rows are read.
// Default is DefaultMinWords.
func WithMinWords(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minWords = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor creates an extractor with the given options.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		column:   DefaultColumn,
		minWords: DefaultMinWords,
		logger:   slog.Default().With("component", "vocab"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads rows until at least the configured number of words has been
// collected or the input ends. Whole rows are consumed, so the result may
// exceed the minimum.
func (e *Extractor) Extract(src Source) ([]string, error) {
	header := src.Header()
	if !slices.Contains(header, e.column) {
		return nil, fmt.Errorf("%w: %q (available columns: %s)", ErrColumnNotFound, e.column, strings.Join(header, ", "))
	}

	var words []string
	for len(words) < e.minWords {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return words, err
		}
		text, _ := rec.Get(e.column)
		words = append(words, Tokenize(text)...)
	}

	e.logger.Info("vocabulary extracted", "column", e.column, "target", e.minWords, "words", len(words))
	return words, nil
}

// Write writes words to w, one per line.
func Write(w io.Writer, words []string) error {
	bw := bufio.NewWriter(w)
	for _, word := range words {
		if _, err := bw.WriteString(word); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read loads a word list written by Write. Blank lines are ignored.
func Read(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if word := strings.TrimSpace(scanner.Text()); word != "" {
			words = append(words, word)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, ErrEmptyVocabulary
	}
	return words, nil
}
