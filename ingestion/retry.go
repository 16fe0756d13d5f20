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
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/poiesic/bulkload/core"
)

// Backoff returns the delay before resubmission round attempt (1-based):
// InitialBackoff * Multiplier^attempt, spread by ±Jitter using rnd in [0, 1).
func (c RetryConfig) Backoff(attempt int, rnd func() float64) time.Duration {
	delay := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt))
	if c.Jitter > 0 && rnd != nil {
		delay *= 1 + c.Jitter*(2*rnd()-1)
	}
	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryWithBackoff runs operation until it succeeds, fails with an error that is
// not a core.ErrTransientEndpoint, or has been tried MaxRetries+1 times.
// Returns the error from the last attempt if all attempts fail.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, operation func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := cfg.Backoff(attempt, rand.Float64)
			slog.Debug("operation failed, will retry", "attempt", attempt, "maxRetries", cfg.MaxRetries, "delay", delay, "error", lastErr)
			if err := sleepContext(ctx, delay); err != nil {
				return err
			}
		}

		// Check context before attempting
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 0 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !errors.Is(lastErr, core.ErrTransientEndpoint) {
			return lastErr
		}
	}
	return lastErr
}
