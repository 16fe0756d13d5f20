package core

import (
	"errors"
	"testing"
)

func TestValidateSummary(t *testing.T) {
	tests := []struct {
		name    string
		summary RunSummary
		wantErr error
	}{
		{
			name:    "balanced complete run",
			summary: RunSummary{Submitted: 10, Succeeded: 7, FatallyFailed: 3},
		},
		{
			name:    "empty run",
			summary: RunSummary{},
		},
		{
			name:    "unbalanced complete run",
			summary: RunSummary{Submitted: 10, Succeeded: 7, FatallyFailed: 2},
			wantErr: ErrInvalidSummary,
		},
		{
			name:    "complete run with abandoned documents",
			summary: RunSummary{Submitted: 10, Succeeded: 7, FatallyFailed: 2, Abandoned: 1},
			wantErr: ErrInvalidSummary,
		},
		{
			name:    "incomplete run counts abandoned",
			summary: RunSummary{Submitted: 10, Succeeded: 7, FatallyFailed: 2, Abandoned: 1, Incomplete: true},
		},
		{
			name:    "negative counter",
			summary: RunSummary{Submitted: -1},
			wantErr: ErrInvalidSummary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSummary(tt.summary)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSummary() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSummary() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOperation(t *testing.T) {
	tests := []struct {
		name    string
		op      IndexOperation
		wantErr bool
	}{
		{"valid", IndexOperation{Target: "events", Source: []byte(`{}`)}, false},
		{"empty target", IndexOperation{Source: []byte(`{}`)}, true},
		{"empty source", IndexOperation{Target: "events"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOperation(tt.op)
			if tt.wantErr && !errors.Is(err, ErrSchema) {
				t.Errorf("expected schema error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
