package loadgen

import "errors"

var (
	// ErrEndpointRequired is returned when no endpoint is given.
	ErrEndpointRequired = errors.New("endpoint is required")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid load test configuration")

	// ErrVocabularyTooSmall is returned when the vocabulary holds fewer distinct
	// words than a query needs.
	ErrVocabularyTooSmall = errors.New("vocabulary too small")
)
