package core

import "fmt"

// ValidateSummary checks the accounting invariant of a finalized summary.
//
// Validation rules:
//   - complete runs: Succeeded + FatallyFailed == Submitted
//   - incomplete runs: Succeeded + FatallyFailed + Abandoned == Submitted
//   - no counter is negative
func ValidateSummary(s RunSummary) error {
	if s.Submitted < 0 || s.Succeeded < 0 || s.FatallyFailed < 0 || s.Abandoned < 0 {
		return fmt.Errorf("%w: negative counter", ErrInvalidSummary)
	}

	resolved := s.Succeeded + s.FatallyFailed
	if s.Incomplete {
		resolved += s.Abandoned
	} else if s.Abandoned != 0 {
		return fmt.Errorf("%w: complete run has %d abandoned documents", ErrInvalidSummary, s.Abandoned)
	}

	if resolved != s.Submitted {
		return fmt.Errorf("%w: %d resolved, %d submitted", ErrInvalidSummary, resolved, s.Submitted)
	}
	return nil
}

// ValidateOperation checks that an operation can be submitted.
func ValidateOperation(op IndexOperation) error {
	if op.Target == "" {
		return fmt.Errorf("%w: line %d: empty target", ErrSchema, op.Line)
	}
	if len(op.Source) == 0 {
		return fmt.Errorf("%w: line %d: empty document", ErrSchema, op.Line)
	}
	return nil
}
