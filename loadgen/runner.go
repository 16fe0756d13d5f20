package loadgen

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/bulkload/endpoint"
	"github.com/poiesic/bulkload/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const maxSampleErrors = 10

// Report summarizes a load test.
type Report struct {
	Requests     int64         `json:"requests"`
	Succeeded    int64         `json:"succeeded"`
	Failed       int64         `json:"failed"`
	MinLatency   time.Duration `json:"min_latency"`
	MaxLatency   time.Duration `json:"max_latency"`
	MeanLatency  time.Duration `json:"mean_latency"`
	Elapsed      time.Duration `json:"elapsed"`
	Throughput   float64       `json:"requests_per_second"`
	SampleErrors []string      `json:"sample_errors,omitempty"`
}

// Runner executes load tests against one endpoint.
type Runner struct {
	endpoint endpoint.Endpoint
	words    []string
	config   Config
	recorder metrics.QueryRecorder
	seed     uint64
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecorder records every query on rec.
func WithRecorder(rec metrics.QueryRecorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithSeed makes word sampling and think times reproducible.
func WithSeed(seed uint64) Option {
	return func(r *Runner) {
		r.seed = seed
	}
}

// NewRunner creates a runner drawing query words from vocabulary.
// Duplicate words are ignored. The config is copied.
func NewRunner(ep endpoint.Endpoint, vocabulary []string, config *Config, opts ...Option) (*Runner, error) {
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

	words := distinct(vocabulary)
	if len(words) < cfg.WordsPerQuery {
		return nil, fmt.Errorf("%w: %d distinct words, %d needed per query", ErrVocabularyTooSmall, len(words), cfg.WordsPerQuery)
	}

	r := &Runner{
		endpoint: ep,
		words:    words,
		config:   cfg,
		recorder: metrics.Nop{},
		seed:     rand.Uint64(),
		logger:   slog.Default().With("component", "loadgen"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run starts the configured number of users and blocks until the run ends.
// The report is valid even when an error is returned; the error is ctx.Err()
// when the caller cancelled the run.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	runCtx := ctx
	if r.config.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.config.Duration)
		defer cancel()
	}

	pool, err := ants.NewPool(r.config.Users)
	if err != nil {
		return Report{}, err
	}
	defer pool.Release()

	var limiter *rate.Limiter
	if r.config.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.config.QPS), 1)
	}

	r.logger.Info("starting load test",
		"target", r.config.Target,
		"users", r.config.Users,
		"duration", r.config.Duration,
		"requests", r.config.Requests,
		"qps", r.config.QPS)

	st := &stats{}
	var issued atomic.Int64
	start := time.Now()

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < r.config.Users; i++ {
		rnd := newRand(r.seed, i)
		g.Go(func() error {
			done := make(chan struct{})
			if err := pool.Submit(func() {
				defer close(done)
				r.user(gctx, rnd, limiter, &issued, st)
			}); err != nil {
				return err
			}
			<-done
			return nil
		})
	}

	err = g.Wait()
	report := st.report(time.Since(start))
	r.logger.Info("load test finished",
		"requests", report.Requests,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"mean_latency", report.MeanLatency)

	if err != nil {
		return report, err
	}
	return report, ctx.Err()
}

// user issues queries until the run ends or the request budget is spent.
func (r *Runner) user(ctx context.Context, rnd *rand.Rand, limiter *rate.Limiter, issued *atomic.Int64, st *stats) {
	for ctx.Err() == nil {
		if r.config.Requests > 0 && issued.Add(1) > r.config.Requests {
			return
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		r.query(ctx, rnd, st)

		wait := r.config.MinWait
		if spread := r.config.MaxWait - r.config.MinWait; spread > 0 {
			wait += time.Duration(rnd.Int64N(int64(spread) + 1))
		}
		if err := pause(ctx, wait); err != nil {
			return
		}
	}
}

// query sends one search. A started request is not cut short by the end of the run.
func (r *Runner) query(ctx context.Context, rnd *rand.Rand, st *stats) {
	body, err := BuildQuery(r.config.Field, r.sample(rnd), r.config.Size)
	if err != nil {
		st.record(0, err.Error())
		return
	}

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	res, err := r.endpoint.Search(reqCtx, r.config.Target, body)
	elapsed := time.Since(start)

	var detail string
	switch {
	case err != nil:
		detail = err.Error()
	case res == nil:
		detail = "empty search response"
	case res.Status != http.StatusOK:
		detail = fmt.Sprintf("search failed with status %d", res.Status)
	case !res.HasTotal:
		detail = "search response missing hits total"
	}

	r.recorder.ObserveQuery(elapsed, detail == "")
	st.record(elapsed, detail)
	if detail != "" {
		r.logger.Debug("query failed", "elapsed", elapsed, "detail", detail)
	}
}

// sample picks WordsPerQuery distinct words in random order.
func (r *Runner) sample(rnd *rand.Rand) []string {
	n := r.config.WordsPerQuery
	picked := make(map[int]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		i := rnd.IntN(len(r.words))
		if _, dup := picked[i]; dup {
			continue
		}
		picked[i] = struct{}{}
		out = append(out, r.words[i])
	}
	return out
}

func newRand(seed uint64, user int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(user)))
}

func distinct(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok || w == "" {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func pause(ctx context.Context, d time.Duration) error {
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

type stats struct {
	mu        sync.Mutex
	requests  int64
	succeeded int64
	total     time.Duration
	min, max  time.Duration
	samples   []string
}

// record accounts for one request. An empty detail means it succeeded.
func (s *stats) record(elapsed time.Duration, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests++
	s.total += elapsed
	if s.requests == 1 || elapsed < s.min {
		s.min = elapsed
	}
	if elapsed > s.max {
		s.max = elapsed
	}
	if detail == "" {
		s.succeeded++
	} else if len(s.samples) < maxSampleErrors {
		s.samples = append(s.samples, detail)
	}
}

func (s *stats) report(elapsed time.Duration) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := Report{
		Requests:     s.requests,
		Succeeded:    s.succeeded,
		Failed:       s.requests - s.succeeded,
		MinLatency:   s.min,
		MaxLatency:   s.max,
		Elapsed:      elapsed,
		SampleErrors: append([]string(nil), s.samples...),
	}
	if s.requests > 0 {
		rep.MeanLatency = s.total / time.Duration(s.requests)
	}
	if elapsed > 0 {
		rep.Throughput = float64(s.requests) / elapsed.Seconds()
	}
	return rep
}
