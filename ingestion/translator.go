package ingestion

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/poiesic/bulkload/core"
)

// Translator turns raw records into index operations.
// It holds no mutable state and is safe for concurrent use.
type Translator struct {
	target     string
	idField    string
	contentIDs bool
	fields     []string
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithIDField takes each document's identifier from the named field.
func WithIDField(name string) TranslatorOption {
	return func(t *Translator) {
		t.idField = name
	}
}

// WithContentIDs derives identifiers from the encoded payload when no id field is set.
func WithContentIDs() TranslatorOption {
	return func(t *Translator) {
		t.contentIDs = true
	}
}

// WithFields restricts documents to the named fields. Header order is kept.
func WithFields(names []string) TranslatorOption {
	return func(t *Translator) {
		t.fields = slices.Clone(names)
	}
}

// NewTranslator creates a translator writing to target.
func NewTranslator(target string, opts ...TranslatorOption) *Translator {
	t := &Translator{target: target}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate builds the operation for rec. The payload is a JSON object with the
// record's fields in header order. A declared id field that is absent or empty
// yields a *core.SchemaError.
func (t *Translator) Translate(rec core.RawRecord) (core.IndexOperation, error) {
	op := core.IndexOperation{Target: t.target, Line: rec.Line}

	if t.idField != "" {
		id, ok := rec.Get(t.idField)
		if !ok || id == "" {
			return op, &core.SchemaError{Line: rec.Line, Field: t.idField}
		}
		op.ID = id
	}

	source, err := t.encode(rec)
	if err != nil {
		return op, err
	}
	op.Source = source

	if op.ID == "" && t.contentIDs {
		op.ID = core.DocumentIDFromContent(source)
	}
	return op, nil
}

func (t *Translator) encode(rec core.RawRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, f := range rec.Fields {
		if len(t.fields) > 0 && !slices.Contains(t.fields, f.Name) {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
