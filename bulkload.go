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

// Package bulkload loads delimited text into a search index.
//
// A Session is the result of the setup phase: a verified endpoint connection,
// an optional local journal, and constructors for the pipelines that use them.
//
//	sess, err := bulkload.Open(ctx, bulkload.Config{Endpoint: epCfg, Target: "events", CreateIndex: true})
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	p, err := sess.NewPipeline(ingestCfg)
package bulkload

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/endpoint"
	"github.com/poiesic/bulkload/endpoint/elasticsearch"
	"github.com/poiesic/bulkload/ingestion"
	"github.com/poiesic/bulkload/loadgen"
	"github.com/poiesic/bulkload/storage"
	"github.com/poiesic/bulkload/storage/badger"
)

// Config holds the settings of the setup phase.
type Config struct {
	// Endpoint holds the connection settings. Nil means endpoint.DefaultConfig().
	Endpoint *endpoint.Config

	// Target is the collection checked or created during setup. Empty skips the check.
	Target string

	// CreateIndex creates Target when it does not exist
	CreateIndex bool

	// JournalPath is the badger directory for the failure journal and run history.
	// Empty disables both.
	JournalPath string

	// Retry bounds the reachability check. Zero value means ingestion.DefaultRetryConfig().
	Retry ingestion.RetryConfig
}

// Session owns the endpoint client and the journal for the lifetime of a command.
type Session struct {
	endpoint endpoint.Endpoint
	backend  *badger.Backend
	journal  storage.FailureJournal
	runs     storage.RunRepository
	logger   *slog.Logger
}

// Option configures Open.
type Option func(*sessionOptions)

type sessionOptions struct {
	endpoint endpoint.Endpoint
	logger   *slog.Logger
}

// WithEndpoint uses ep instead of connecting to Config.Endpoint.
// The session takes ownership of ep and closes it.
func WithEndpoint(ep endpoint.Endpoint) Option {
	return func(o *sessionOptions) {
		o.endpoint = ep
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *sessionOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open connects to the endpoint, verifies it is reachable, ensures the target
// exists when asked to, and opens the journal. Problems with the endpoint are
// returned as *core.FatalConfigurationError.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Session, error) {
	options := &sessionOptions{
		logger: slog.Default().With("component", "session"),
	}
	for _, opt := range opts {
		opt(options)
	}

	retry := cfg.Retry
	if retry == (ingestion.RetryConfig{}) {
		retry = ingestion.DefaultRetryConfig()
	}
	if err := retry.Validate(); err != nil {
		return nil, err
	}

	ep := options.endpoint
	if ep == nil {
		epCfg := cfg.Endpoint
		if epCfg == nil {
			epCfg = endpoint.DefaultConfig()
		}
		client, err := elasticsearch.New(epCfg, elasticsearch.WithLogger(options.logger))
		if err != nil {
			return nil, &core.FatalConfigurationError{Reason: "invalid endpoint configuration", Err: err}
		}
		ep = client
	}

	s := &Session{endpoint: ep, logger: options.logger}

	err := ingestion.RetryWithBackoff(ctx, retry, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, retry.RequestTimeout)
		defer cancel()
		return ep.Ping(pingCtx)
	})
	if err != nil {
		s.Close()
		if errors.Is(err, core.ErrFatalConfiguration) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &core.FatalConfigurationError{Reason: "endpoint unreachable", Err: err}
	}

	if cfg.CreateIndex && cfg.Target != "" {
		if err := ep.EnsureTarget(ctx, cfg.Target); err != nil {
			s.Close()
			if errors.Is(err, core.ErrFatalConfiguration) {
				return nil, err
			}
			return nil, &core.FatalConfigurationError{Reason: "invalid target collection " + cfg.Target, Err: err}
		}
	}

	if cfg.JournalPath != "" {
		backend, err := badger.OpenBackend(cfg.JournalPath, false)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.backend = backend
		s.journal = badger.NewFailureJournal(backend)
		s.runs = badger.NewRunRepository(backend)
	}

	s.logger.Info("session ready", "target", cfg.Target, "journal", cfg.JournalPath)
	return s, nil
}

// Close releases the journal and the endpoint client. It reports every failure.
func (s *Session) Close() error {
	var result *multierror.Error
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("error closing journal", "err", err)
			result = multierror.Append(result, err)
		}
	}
	if s.endpoint != nil {
		if err := s.endpoint.Close(); err != nil {
			s.logger.Error("error closing endpoint", "err", err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Endpoint returns the connected endpoint.
func (s *Session) Endpoint() endpoint.Endpoint {
	return s.endpoint
}

// Journal returns the failure journal, or nil when the session has none.
func (s *Session) Journal() storage.FailureJournal {
	return s.journal
}

// Runs returns the run history, or nil when the session has none.
func (s *Session) Runs() storage.RunRepository {
	return s.runs
}

// NewPipeline creates an ingestion pipeline that journals failures and records
// its runs when the session has a journal.
func (s *Session) NewPipeline(cfg *ingestion.Config, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{ingestion.WithLogger(s.logger.With("component", "pipeline"))}
	if s.journal != nil {
		base = append(base, ingestion.WithJournal(s.journal), ingestion.WithRunRepository(s.runs))
	}
	return ingestion.NewPipeline(s.endpoint, cfg, append(base, opts...)...)
}

// NewLoadRunner creates a load generator querying the session's endpoint.
func (s *Session) NewLoadRunner(vocabulary []string, cfg *loadgen.Config, opts ...loadgen.Option) (*loadgen.Runner, error) {
	return loadgen.NewRunner(s.endpoint, vocabulary, cfg, opts...)
}

// ReplayResult describes a replay of journaled failures.
type ReplayResult struct {
	Summary core.RunSummary `json:"summary"`
	Entries int             `json:"entries"`
	Cleared int             `json:"cleared"`
}

// Replay resubmits the journaled failures of runID, or of every run when runID
// is empty, and removes the entries whose documents were written. Documents
// that fail again stay in the journal.
func (s *Session) Replay(ctx context.Context, runID string, cfg *ingestion.Config, opts ...ingestion.Option) (ReplayResult, error) {
	if s.journal == nil {
		return ReplayResult{}, ErrNoJournal
	}

	entries, err := s.journal.GetFailures(ctx, runID)
	if err != nil {
		return ReplayResult{}, err
	}
	result := ReplayResult{Entries: len(entries)}
	if len(entries) == 0 {
		return result, nil
	}

	// Entries are matched by target and payload; assigned IDs change on success.
	keys := make(map[string][]core.ID, len(entries))
	ops := make([]core.IndexOperation, len(entries))
	for i, e := range entries {
		ops[i] = e.Operation()
		k := replayKey(e.Target, e.Source)
		keys[k] = append(keys[k], e.Key)
	}

	var mu sync.Mutex
	succeeded := make(map[core.ID]struct{}, len(entries))
	hook := ingestion.WithOutcomes(func(o core.Outcome) {
		if o.Status != core.StatusSuccess {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, key := range keys[replayKey(o.Operation.Target, o.Operation.Source)] {
			succeeded[key] = struct{}{}
		}
	})

	p, err := s.NewPipeline(cfg, append(opts, hook)...)
	if err != nil {
		return result, err
	}
	defer p.Release()

	summary, runErr := p.RunOperations(ctx, ops)
	cleared := make([]core.ID, 0, len(succeeded))
	for key := range succeeded {
		cleared = append(cleared, key)
	}
	result.Summary = summary

	if len(cleared) > 0 {
		if err := s.journal.DeleteFailures(context.WithoutCancel(ctx), cleared...); err != nil {
			return result, err
		}
	}
	result.Cleared = len(cleared)
	s.logger.Info("replay finished", "entries", result.Entries, "cleared", result.Cleared)
	return result, runErr
}

func replayKey(target string, source []byte) string {
	return target + "\x00" + string(source)
}

// Verify returns the number of documents stored in target.
func (s *Session) Verify(ctx context.Context, target string) (int64, error) {
	return s.endpoint.Count(ctx, target)
}
