package ingestion

import "errors"

var (
	// ErrEndpointRequired is returned when no endpoint is provided.
	ErrEndpointRequired = errors.New("endpoint required")

	// ErrAggregatorRequired is returned when a submitter has no aggregator.
	ErrAggregatorRequired = errors.New("aggregator required")

	// ErrInvalidConfig is returned when a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid ingestion config")

	// ErrRetryBudgetExhausted is the detail recorded for documents still pending
	// after the last allowed attempt.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

	// ErrOutcomeUnknown is the detail recorded for documents without an
	// identifier whose request was lost. Resubmitting them could index them twice.
	ErrOutcomeUnknown = errors.New("outcome unknown, document has no identifier")
)
