package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/endpoint"
	"github.com/poiesic/bulkload/metrics"
	"github.com/poiesic/bulkload/storage"
	"golang.org/x/sync/errgroup"
)

// RecordSource yields raw records in input order and io.EOF at the end.
type RecordSource interface {
	Next() (core.RawRecord, error)
}

// skipCounter is implemented by sources that drop malformed rows.
type skipCounter interface {
	Skipped() int
}

// producer feeds operations to emit until the input is exhausted.
type producer func(ctx context.Context, agg *Aggregator, emit func(core.IndexOperation) error) error

// Pipeline drives ingestion runs against one endpoint.
type Pipeline struct {
	endpoint  endpoint.Endpoint
	config    Config
	pool      *ants.Pool
	journal   storage.FailureJournal
	runs      storage.RunRepository
	recorder  metrics.Recorder
	progress  io.Writer
	onOutcome func(core.Outcome)
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithJournal persists fatally failed documents to j.
func WithJournal(j storage.FailureJournal) Option {
	return func(p *Pipeline) error {
		p.journal = j
		return nil
	}
}

// WithRunRepository stores the summary of every run in r.
func WithRunRepository(r storage.RunRepository) Option {
	return func(p *Pipeline) error {
		p.runs = r
		return nil
	}
}

// WithMetrics records run events on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(p *Pipeline) error {
		if r != nil {
			p.recorder = r
		}
		return nil
	}
}

// WithProgress reports progress to w every ReportInterval documents.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithOutcomes calls fn with every terminal outcome of every run.
// fn is called from worker goroutines and must be safe for concurrent use.
func WithOutcomes(fn func(core.Outcome)) Option {
	return func(p *Pipeline) error {
		p.onOutcome = fn
		return nil
	}
}

// NewPipeline creates a pipeline writing to ep. The config is copied.
func NewPipeline(ep endpoint.Endpoint, config *Config, opts ...Option) (*Pipeline, error) {
	if ep == nil {
		return nil, ErrEndpointRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(cfg.MaxInFlight)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		endpoint: ep,
		config:   cfg,
		pool:     pool,
		recorder: metrics.Nop{},
		logger:   slog.Default().With("component", "pipeline"),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// Run ingests every record of src and returns the finalized summary.
// A non-nil error means the run was aborted or cancelled; the summary is then
// marked incomplete and still accounts for every submitted document.
func (p *Pipeline) Run(ctx context.Context, src RecordSource) (core.RunSummary, error) {
	tr := p.translator()
	return p.execute(ctx, func(ctx context.Context, agg *Aggregator, emit func(core.IndexOperation) error) error {
		if sc, ok := src.(skipCounter); ok {
			defer func() { agg.Skipped(sc.Skipped()) }()
		}

		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}

			op, err := tr.Translate(rec)
			if err != nil {
				if !errors.Is(err, core.ErrSchema) {
					return err
				}
				// Never reaches the endpoint but still counts as submitted.
				agg.Submitted(1)
				agg.Record(core.Outcome{Operation: op, Status: core.StatusFatal, Detail: err.Error()})
				continue
			}
			if err := emit(op); err != nil {
				return err
			}
		}
	})
}

// RunOperations submits prepared operations, such as journal entries being replayed.
func (p *Pipeline) RunOperations(ctx context.Context, ops []core.IndexOperation) (core.RunSummary, error) {
	return p.execute(ctx, func(ctx context.Context, _ *Aggregator, emit func(core.IndexOperation) error) error {
		for _, op := range ops {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(op); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Pipeline) translator() *Translator {
	opts := []TranslatorOption{WithIDField(p.config.IDField), WithFields(p.config.Fields)}
	if p.config.ContentIDs {
		opts = append(opts, WithContentIDs())
	}
	return NewTranslator(p.config.Target, opts...)
}

func (p *Pipeline) execute(ctx context.Context, produce producer) (core.RunSummary, error) {
	runID := core.NewRunID()
	logger := p.logger.With("run", runID)

	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, p.config.ReportInterval)
		tracker.Start()
	}

	agg := NewAggregator(runID, p.config.Target,
		WithSampleSize(p.config.SampleSize),
		WithRecorder(p.recorder),
		WithFailureJournal(p.journal),
		WithProgressTracker(tracker),
		WithOutcomeHook(p.onOutcome),
		WithAggregatorLogger(logger),
	)

	sub, err := NewSubmitter(p.endpoint, agg, p.config.RetryConfig,
		WithSubmitterLogger(logger),
		WithSubmitterRecorder(p.recorder),
	)
	if err != nil {
		return agg.Finalize(true), err
	}

	logger.Info("starting run",
		"target", p.config.Target,
		"max_batch_count", p.config.MaxBatchCount,
		"max_batch_bytes", p.config.MaxBatchBytes,
		"max_in_flight", p.config.MaxInFlight,
		"max_retries", p.config.MaxRetries)

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan core.Batch, p.config.QueueDepth)

	// Producer: source -> translator -> batcher. Batches are released only once
	// complete, so an aborting row stops the run before its batch is submitted.
	g.Go(func() error {
		defer close(batches)

		batcher := NewBatcher(p.config.MaxBatchCount, p.config.MaxBatchBytes)
		release := func(b core.Batch) error {
			select {
			case batches <- b:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		emit := func(op core.IndexOperation) error {
			if b, ok := batcher.Add(op); ok {
				return release(b)
			}
			return nil
		}

		if err := produce(gctx, agg, emit); err != nil {
			return err
		}
		if b, ok := batcher.Flush(); ok {
			return release(b)
		}
		return nil
	})

	// Dispatcher: one pool task per batch, so the pool size bounds the requests in flight.
	g.Go(func() error {
		return p.dispatch(gctx, sub, batches)
	})

	err = g.Wait()
	summary := agg.Finalize(err != nil)

	if p.runs != nil {
		if saveErr := p.runs.SaveRun(context.WithoutCancel(ctx), &summary); saveErr != nil {
			logger.Error("error saving run summary", "err", saveErr)
		}
	}

	attrs := []any{
		"submitted", summary.Submitted,
		"succeeded", summary.Succeeded,
		"fatally_failed", summary.FatallyFailed,
		"retried", summary.Retried,
		"skipped", summary.Skipped,
		"abandoned", summary.Abandoned,
		"elapsed", summary.Elapsed(),
	}
	if err != nil {
		logger.Error("run stopped", append(attrs, "err", err)...)
	} else {
		logger.Info("run finished", attrs...)
	}
	return summary, err
}

// dispatch hands every batch to the worker pool until the queue closes, a
// submission fails, or the run is cancelled. Batches not yet started at that
// point are discarded. It returns once every started submission has finished.
func (p *Pipeline) dispatch(ctx context.Context, sub *Submitter, batches <-chan core.Batch) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	loop := func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case batch, ok := <-batches:
				if !ok {
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}

				wg.Add(1)
				// Blocks while every worker is busy
				err := p.pool.Submit(func() {
					defer wg.Done()
					if ctx.Err() != nil {
						return
					}
					if err := sub.Submit(ctx, batch); err != nil {
						fail(err)
					}
				})
				if err != nil {
					wg.Done()
					return err
				}
			}
		}
	}

	err := loop()
	if err != nil {
		cancel()
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return err
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
