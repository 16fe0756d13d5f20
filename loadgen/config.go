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

package loadgen

import (
	"fmt"
	"time"
)

// Config holds configuration for a load test.
type Config struct {
	// Target is the collection queried
	Target string

	// Field is the document field the queries match against
	Field string

	// Users is the number of concurrent simulated users
	Users int

	// WordsPerQuery is how many distinct vocabulary words each query holds
	WordsPerQuery int

	// Size is the number of hits requested per query
	Size int

	// MinWait and MaxWait bound the random pause between a user's requests
	MinWait time.Duration
	MaxWait time.Duration

	// QPS caps the combined request rate of all users. 0 means unlimited.
	QPS float64

	// Duration ends the run after the given time. 0 means no time limit.
	Duration time.Duration

	// Requests ends the run after that many requests. 0 means no limit.
	Requests int64

	// RequestTimeout bounds each search request
	RequestTimeout time.Duration
}

// DefaultConfig returns the default load test configuration.
func DefaultConfig() *Config {
	return &Config{
		Target:         "events",
		Field:          "content",
		Users:          10,
		WordsPerQuery:  10,
		Size:           50,
		MinWait:        time.Second,
		MaxWait:        3 * time.Second,
		Duration:       time.Minute,
		RequestTimeout: 30 * time.Second,
	}
}

// Validate checks that the configuration is valid and complete.
func (c *Config) Validate() error {
	switch {
	case c.Target == "":
		return fmt.Errorf("%w: target is required", ErrInvalidConfig)
	case c.Field == "":
		return fmt.Errorf("%w: field is required", ErrInvalidConfig)
	case c.Users < 1:
		return fmt.Errorf("%w: users must be at least 1", ErrInvalidConfig)
	case c.WordsPerQuery < 1:
		return fmt.Errorf("%w: words per query must be at least 1", ErrInvalidConfig)
	case c.Size < 0:
		return fmt.Errorf("%w: size must not be negative", ErrInvalidConfig)
	case c.MinWait < 0 || c.MaxWait < c.MinWait:
		return fmt.Errorf("%w: wait range must satisfy 0 <= min <= max", ErrInvalidConfig)
	case c.QPS < 0:
		return fmt.Errorf("%w: qps must not be negative", ErrInvalidConfig)
	case c.Duration < 0 || c.Requests < 0:
		return fmt.Errorf("%w: duration and requests must not be negative", ErrInvalidConfig)
	case c.Duration == 0 && c.Requests == 0:
		return fmt.Errorf("%w: a duration or a request count is required", ErrInvalidConfig)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
