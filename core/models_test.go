package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "same content produces same ID",
			content: `{"id":"a","title":"x"}`,
		},
		{
			name:    "empty content",
			content: "",
		},
		{
			name:    "long content",
			content: "This is a much longer piece of content that should still hash consistently",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent([]byte(tt.content))
			id2 := IDFromContent([]byte(tt.content))
			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	if IDFromContent([]byte("content1")) == IDFromContent([]byte("content2")) {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestDocumentIDFromContent(t *testing.T) {
	a := DocumentIDFromContent([]byte(`{"title":"x"}`))
	b := DocumentIDFromContent([]byte(`{"title":"x"}`))
	c := DocumentIDFromContent([]byte(`{"title":"y"}`))

	if a != b {
		t.Errorf("expected stable id, got %s and %s", a, b)
	}
	if a == c {
		t.Errorf("expected different ids for different payloads")
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
}

func TestRawRecord_Get(t *testing.T) {
	rec := RawRecord{Line: 2, Fields: []Field{{Name: "id", Value: "a"}, {Name: "title", Value: ""}}}

	v, ok := rec.Get("id")
	if !ok || v != "a" {
		t.Errorf("Get(id) = %q, %v", v, ok)
	}
	v, ok = rec.Get("title")
	if !ok || v != "" {
		t.Errorf("Get(title) = %q, %v", v, ok)
	}
	if _, ok := rec.Get("missing"); ok {
		t.Errorf("Get(missing) should report absence")
	}
}

func TestStatus(t *testing.T) {
	if !StatusSuccess.Terminal() || !StatusFatal.Terminal() {
		t.Error("success and fatal must be terminal")
	}
	if StatusRetryable.Terminal() {
		t.Error("retryable must not be terminal")
	}
	if Status(0).String() != "unknown" {
		t.Errorf("unexpected string for zero status: %s", Status(0))
	}
}

func TestErrorClasses(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"malformed", &MalformedInputError{Line: 3, Want: 3, Got: 2}, ErrMalformedInput},
		{"schema", &SchemaError{Line: 4, Field: "id"}, ErrSchema},
		{"transient", &TransientEndpointError{Status: 503, Err: errors.New("busy")}, ErrTransientEndpoint},
		{"permanent", &PermanentDocumentError{Status: 400, Reason: "mapper_parsing_exception"}, ErrPermanentDocument},
		{"config", &FatalConfigurationError{Reason: "unauthorized"}, ErrFatalConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("wrapped: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}
			if errors.Is(wrapped, ErrInvalidSummary) {
				t.Errorf("unexpected match against unrelated sentinel")
			}
		})
	}
}

func TestTransientEndpointError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransientEndpointError{Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable")
	}
	if err.Error() != "transient endpoint error: connection refused" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
