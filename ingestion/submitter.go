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
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/endpoint"
	"github.com/poiesic/bulkload/metrics"
)

// Submitter sends batches to an endpoint and resolves every document in them.
// It is safe for concurrent use; each Submit call keeps its own pending set and
// backoff clock.
type Submitter struct {
	endpoint endpoint.Endpoint
	agg      *Aggregator
	cfg      RetryConfig
	recorder metrics.Recorder
	rand     func() float64
	logger   *slog.Logger
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithSubmitterLogger sets a custom logger.
func WithSubmitterLogger(logger *slog.Logger) SubmitterOption {
	return func(s *Submitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSubmitterRecorder records request latency and results on r.
func WithSubmitterRecorder(r metrics.Recorder) SubmitterOption {
	return func(s *Submitter) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithJitterSource replaces the random source used to jitter backoff delays.
func WithJitterSource(rnd func() float64) SubmitterOption {
	return func(s *Submitter) {
		if rnd != nil {
			s.rand = rnd
		}
	}
}

// NewSubmitter creates a submitter reporting outcomes to agg.
func NewSubmitter(ep endpoint.Endpoint, agg *Aggregator, cfg RetryConfig, opts ...SubmitterOption) (*Submitter, error) {
	if ep == nil {
		return nil, ErrEndpointRequired
	}
	if agg == nil {
		return nil, ErrAggregatorRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Submitter{
		endpoint: ep,
		agg:      agg,
		cfg:      cfg,
		recorder: metrics.Nop{},
		rand:     rand.Float64,
		logger:   slog.Default().With("component", "submitter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit resolves every operation of batch. Only documents that are still
// retryable are resubmitted; each resubmission round waits an exponential,
// jittered backoff, and after MaxRetries rounds the remaining documents fail.
//
// Submit returns a non-nil error only when the run must stop: a
// *core.FatalConfigurationError before any document succeeded, or ctx.Err()
// when the run was cancelled. In the latter case the pending documents are
// reported to the aggregator as abandoned.
func (s *Submitter) Submit(ctx context.Context, batch core.Batch) error {
	s.agg.Submitted(batch.Len())

	pending := make([]core.IndexOperation, 0, batch.Len())
	for _, op := range batch.Operations {
		if err := core.ValidateOperation(op); err != nil {
			s.agg.Record(core.Outcome{Operation: op, Status: core.StatusFatal, Detail: err.Error()})
			continue
		}
		pending = append(pending, op)
	}

	var lastDetail string
	for attempt := 0; len(pending) > 0; {
		results, err := s.send(ctx, pending)
		if err == nil && len(results) != len(pending) {
			err = &core.TransientEndpointError{Err: fmt.Errorf("endpoint answered %d items for %d documents", len(results), len(pending))}
		}

		switch {
		case err == nil:
			lastDetail = retryableDetail(results)
			pending = s.resolve(pending, results, attempt+1)

		case errors.Is(err, core.ErrFatalConfiguration) && !s.agg.HasSucceeded():
			s.logger.Error("endpoint rejected configuration", "batch", batch.Seq, "err", err)
			s.agg.Abandon(pending)
			return err

		case errors.Is(err, core.ErrPermanentDocument):
			// The request itself was refused; no document in it can succeed.
			s.fail(pending, err.Error(), attempt+1)
			pending = nil

		default:
			// Transient: pending documents stay retryable unless a resubmission could duplicate them.
			lastDetail = err.Error()
			s.logger.Warn("bulk request failed", "batch", batch.Seq, "attempt", attempt+1, "pending", len(pending), "err", err)
			if outcomeUnknown(err) {
				pending = s.failUnidentified(pending, lastDetail, attempt+1)
			}
		}

		if len(pending) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			s.agg.Abandon(pending)
			return err
		}
		if attempt >= s.cfg.MaxRetries {
			s.fail(pending, fmt.Sprintf("%v: %s", ErrRetryBudgetExhausted, lastDetail), attempt+1)
			break
		}

		attempt++
		delay := s.cfg.Backoff(attempt, s.rand)
		s.logger.Info("retrying pending documents", "batch", batch.Seq, "attempt", attempt, "pending", len(pending), "delay", delay)
		if err := sleepContext(ctx, delay); err != nil {
			s.agg.Abandon(pending)
			return err
		}
		s.agg.Retried(len(pending))
	}
	return nil
}

// send performs one bulk request detached from run cancellation, so an attempt
// that has started always completes or times out on its own.
func (s *Submitter) send(ctx context.Context, ops []core.IndexOperation) ([]endpoint.ItemResult, error) {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	results, err := s.endpoint.Bulk(reqCtx, ops)
	s.recorder.ObserveRequest(len(ops), time.Since(start), err)
	return results, err
}

// resolve records successes and permanent rejections and returns the operations
// that are still retryable, in request order.
func (s *Submitter) resolve(ops []core.IndexOperation, results []endpoint.ItemResult, attempts int) []core.IndexOperation {
	var retry []core.IndexOperation
	for i, res := range results {
		op := ops[i]
		switch {
		case res.Succeeded():
			if op.ID == "" {
				op.ID = res.ID
			}
			s.agg.Record(core.Outcome{Operation: op, Status: core.StatusSuccess, Attempts: attempts})
		case isRetryableStatus(res.Status):
			retry = append(retry, op)
		default:
			detail := (&core.PermanentDocumentError{Status: res.Status, Reason: res.Detail()}).Error()
			s.agg.Record(core.Outcome{Operation: op, Status: core.StatusFatal, Detail: detail, Attempts: attempts})
		}
	}
	return retry
}

func (s *Submitter) fail(ops []core.IndexOperation, detail string, attempts int) {
	for _, op := range ops {
		s.agg.Record(core.Outcome{Operation: op, Status: core.StatusFatal, Detail: detail, Attempts: attempts})
	}
}

// failUnidentified fails the operations without an identifier and returns the rest.
func (s *Submitter) failUnidentified(ops []core.IndexOperation, detail string, attempts int) []core.IndexOperation {
	var kept []core.IndexOperation
	var failed int
	for _, op := range ops {
		if op.ID != "" {
			kept = append(kept, op)
			continue
		}
		failed++
		s.agg.Record(core.Outcome{
			Operation: op,
			Status:    core.StatusFatal,
			Detail:    fmt.Sprintf("%v: %s", ErrOutcomeUnknown, detail),
			Attempts:  attempts,
		})
	}
	if failed > 0 {
		s.logger.Warn("not resubmitting documents without identifier", "count", failed)
	}
	return kept
}

// outcomeUnknown reports whether a batch-level error leaves open whether the
// endpoint applied the request. A 429 or 5xx answer means it was refused whole.
func outcomeUnknown(err error) bool {
	var terr *core.TransientEndpointError
	if errors.As(err, &terr) {
		return terr.Status < http.StatusMultipleChoices
	}
	return !errors.Is(err, core.ErrFatalConfiguration)
}

// retryableDetail describes the first retryable item of a response.
func retryableDetail(results []endpoint.ItemResult) string {
	for _, res := range results {
		if isRetryableStatus(res.Status) {
			return fmt.Sprintf("status %d: %s", res.Status, res.Detail())
		}
	}
	return ""
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
