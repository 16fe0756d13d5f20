package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/bulkload/endpoint"
	"github.com/poiesic/bulkload/endpoint/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vocabulary(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	return words
}

func fastConfig() *Config {
	cfg := DefaultConfig()
	cfg.Users = 3
	cfg.MinWait = 0
	cfg.MaxWait = time.Millisecond
	cfg.Duration = 0
	cfg.Requests = 20
	return cfg
}

type countingRecorder struct {
	mu       sync.Mutex
	ok, fail int
}

func (c *countingRecorder) ObserveQuery(_ time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.ok++
	} else {
		c.fail++
	}
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(nil, vocabulary(20), fastConfig())
	assert.ErrorIs(t, err, ErrEndpointRequired)

	_, err = NewRunner(fake.New(), []string{"a", "a", "b"}, fastConfig())
	assert.ErrorIs(t, err, ErrVocabularyTooSmall)

	cfg := fastConfig()
	cfg.Users = 0
	_, err = NewRunner(fake.New(), vocabulary(20), cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRun_RequestBudget(t *testing.T) {
	var mu sync.Mutex
	var bodies [][]byte

	ep := fake.New()
	ep.SearchFunc = func(ctx context.Context, target string, body []byte) (*endpoint.SearchResult, error) {
		assert.Equal(t, "events", target)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		return &endpoint.SearchResult{Status: http.StatusOK, TotalHits: 3, HasTotal: true}, nil
	}
	rec := &countingRecorder{}

	r, err := NewRunner(ep, vocabulary(50), fastConfig(), WithRecorder(rec), WithSeed(7))
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(20), report.Requests)
	assert.Equal(t, int64(20), report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.SampleErrors)
	assert.LessOrEqual(t, report.MinLatency, report.MeanLatency)
	assert.LessOrEqual(t, report.MeanLatency, report.MaxLatency)
	assert.Equal(t, 20, rec.ok)
	require.Len(t, bodies, 20)

	var parsed struct {
		Query struct {
			Bool struct {
				Should []map[string]map[string]struct {
					Query string `json:"query"`
				} `json:"should"`
			} `json:"bool"`
		} `json:"query"`
	}
	require.NoError(t, json.Unmarshal(bodies[0], &parsed))
	words := strings.Fields(parsed.Query.Bool.Should[0]["match_phrase"]["content"].Query)
	assert.Len(t, words, 10)

	seen := make(map[string]bool)
	for _, w := range words {
		assert.False(t, seen[w], "words are distinct")
		seen[w] = true
		assert.True(t, strings.HasPrefix(w, "word"))
	}
}

func TestRun_Failures(t *testing.T) {
	var mu sync.Mutex
	n := 0

	ep := fake.New()
	ep.SearchFunc = func(ctx context.Context, target string, body []byte) (*endpoint.SearchResult, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		switch n % 3 {
		case 0:
			return &endpoint.SearchResult{Status: http.StatusOK, HasTotal: true}, nil
		case 1:
			return &endpoint.SearchResult{Status: http.StatusOK}, nil
		default:
			return &endpoint.SearchResult{Status: http.StatusServiceUnavailable}, errors.New("unavailable")
		}
	}
	rec := &countingRecorder{}

	cfg := fastConfig()
	cfg.Users = 1
	cfg.Requests = 9
	r, err := NewRunner(ep, vocabulary(20), cfg, WithRecorder(rec))
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(9), report.Requests)
	assert.Equal(t, int64(3), report.Succeeded)
	assert.Equal(t, int64(6), report.Failed)
	assert.Equal(t, 3, rec.ok)
	assert.Equal(t, 6, rec.fail)
	require.NotEmpty(t, report.SampleErrors)
	assert.Contains(t, report.SampleErrors[0], "missing hits total")
}

func TestRun_Duration(t *testing.T) {
	ep := fake.New()
	cfg := fastConfig()
	cfg.Requests = 0
	cfg.Duration = 50 * time.Millisecond

	r, err := NewRunner(ep, vocabulary(20), cfg)
	require.NoError(t, err)

	start := time.Now()
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Positive(t, report.Requests)
	assert.Equal(t, report.Requests, report.Succeeded)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRun_QPSLimit(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxWait = 0
	cfg.Requests = 5
	cfg.QPS = 100

	r, err := NewRunner(fake.New(), vocabulary(20), cfg)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), report.Requests)
	// One token up front, then one every 10ms
	assert.GreaterOrEqual(t, report.Elapsed, 30*time.Millisecond)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ep := fake.New()
	ep.SearchFunc = func(context.Context, string, []byte) (*endpoint.SearchResult, error) {
		cancel()
		return &endpoint.SearchResult{Status: http.StatusOK, HasTotal: true}, nil
	}

	cfg := fastConfig()
	cfg.Users = 1
	cfg.Requests = 0
	cfg.Duration = time.Hour

	r, err := NewRunner(ep, vocabulary(20), cfg)
	require.NoError(t, err)

	report, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), report.Requests, "the in-flight request is still counted")
}

func TestSample_Deterministic(t *testing.T) {
	r1, err := NewRunner(fake.New(), vocabulary(30), fastConfig(), WithSeed(42))
	require.NoError(t, err)
	r2, err := NewRunner(fake.New(), vocabulary(30), fastConfig(), WithSeed(42))
	require.NoError(t, err)

	assert.Equal(t, r1.sample(newRand(42, 0)), r2.sample(newRand(42, 0)))
}
