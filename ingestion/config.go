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

package ingestion

import (
	"fmt"
	"time"
)

// RetryConfig controls how long a batch keeps resubmitting its pending documents.
type RetryConfig struct {
	// MaxRetries is the number of resubmission rounds after the first attempt
	MaxRetries int

	// InitialBackoff is the base delay; round n waits InitialBackoff * Multiplier^n
	InitialBackoff time.Duration

	// Multiplier is the exponential growth factor of the backoff
	Multiplier float64

	// Jitter spreads each delay uniformly by up to this fraction in either direction
	Jitter float64

	// RequestTimeout bounds a single bulk request
	RequestTimeout time.Duration
}

// DefaultRetryConfig returns a RetryConfig with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		Multiplier:     2,
		Jitter:         0.2,
		RequestTimeout: 60 * time.Second,
	}
}

// Validate checks that every retry setting is in range.
func (c RetryConfig) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidConfig)
	case c.InitialBackoff < 0:
		return fmt.Errorf("%w: initial backoff must not be negative", ErrInvalidConfig)
	case c.Multiplier < 1:
		return fmt.Errorf("%w: backoff multiplier must be at least 1", ErrInvalidConfig)
	case c.Jitter < 0 || c.Jitter >= 1:
		return fmt.Errorf("%w: jitter must be in [0, 1)", ErrInvalidConfig)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Config holds configuration for an ingestion run.
type Config struct {
	// Target is the collection documents are written to
	Target string

	// IDField names the input column holding the document identifier.
	IDField string

	// ContentIDs derives identifiers from document content when IDField is empty.
	// With both unset the endpoint assigns identifiers, and a re-run indexes
	// every document again.
	ContentIDs bool

	// Fields selects the columns copied into each document. Empty means all.
	Fields []string

	// MaxBatchCount is the maximum number of operations per batch
	MaxBatchCount int

	// MaxBatchBytes bounds the request size of a batch; 0 disables the bound
	MaxBatchBytes int

	// MaxInFlight is the number of batches submitted concurrently
	MaxInFlight int

	// QueueDepth is the number of closed batches waiting for a worker.
	// 0 means MaxInFlight.
	QueueDepth int

	// SampleSize is the number of fatal error details kept in the summary
	SampleSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	RetryConfig
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ContentIDs:     true,
		MaxBatchCount:  5000,
		MaxInFlight:    4,
		SampleSize:     50,
		ReportInterval: 10000,
		RetryConfig:    DefaultRetryConfig(),
	}
}

// Normalize fills in derived defaults.
func (c *Config) Normalize() {
	if c.QueueDepth == 0 {
		c.QueueDepth = c.MaxInFlight
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	switch {
	case c.Target == "":
		return fmt.Errorf("%w: target is required", ErrInvalidConfig)
	case c.MaxBatchCount < 1:
		return fmt.Errorf("%w: max batch count must be at least 1", ErrInvalidConfig)
	case c.MaxBatchBytes < 0:
		return fmt.Errorf("%w: max batch bytes must not be negative", ErrInvalidConfig)
	case c.MaxInFlight < 1:
		return fmt.Errorf("%w: max in flight must be at least 1", ErrInvalidConfig)
	case c.QueueDepth < 0:
		return fmt.Errorf("%w: queue depth must not be negative", ErrInvalidConfig)
	case c.SampleSize < 0:
		return fmt.Errorf("%w: sample size must not be negative", ErrInvalidConfig)
	case c.ReportInterval < 0:
		return fmt.Errorf("%w: report interval must not be negative", ErrInvalidConfig)
	}
	return c.RetryConfig.Validate()
}
