package fake

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/endpoint"
)

type docFailure struct {
	status int
	reason string
	times  int // 0 means always
	seen   int
}

// Endpoint is an in-memory endpoint.Endpoint with upsert semantics.
// It is safe for concurrent use.
type Endpoint struct {
	// BulkFunc, when set, replaces the default Bulk behaviour entirely.
	BulkFunc func(ctx context.Context, ops []core.IndexOperation) ([]endpoint.ItemResult, error)

	// SearchFunc, when set, replaces the default Search behaviour.
	SearchFunc func(ctx context.Context, target string, body []byte) (*endpoint.SearchResult, error)

	// PingErr is returned by Ping when set.
	PingErr error

	mu          sync.Mutex
	docs        map[string]map[string][]byte
	calls       [][]string
	docFailures map[string]*docFailure
	reqFailures []error
	nextAuto    int
	closed      bool
}

var _ endpoint.Endpoint = (*Endpoint)(nil)

// New creates an empty fake endpoint.
func New() *Endpoint {
	return &Endpoint{
		docs:        make(map[string]map[string][]byte),
		docFailures: make(map[string]*docFailure),
	}
}

// FailDocument makes every attempt of the document with id answer status.
func (e *Endpoint) FailDocument(id string, status int, reason string) {
	e.FailDocumentTimes(id, status, reason, 0)
}

// FailDocumentTimes makes the first n attempts of id answer status. n == 0 fails forever.
func (e *Endpoint) FailDocumentTimes(id string, status int, reason string, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docFailures[id] = &docFailure{status: status, reason: reason, times: n}
}

// FailRequests makes the next n bulk requests fail with err before any document is examined.
func (e *Endpoint) FailRequests(n int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < n; i++ {
		e.reqFailures = append(e.reqFailures, err)
	}
}

// Bulk records the call and applies each operation as an upsert unless scripted to fail.
func (e *Endpoint) Bulk(ctx context.Context, ops []core.IndexOperation) ([]endpoint.ItemResult, error) {
	e.mu.Lock()
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	e.calls = append(e.calls, ids)
	fn := e.BulkFunc
	e.mu.Unlock()

	if fn != nil {
		return fn(ctx, ops)
	}
	if err := ctx.Err(); err != nil {
		return nil, &core.TransientEndpointError{Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.reqFailures) > 0 {
		err := e.reqFailures[0]
		e.reqFailures = e.reqFailures[1:]
		return nil, err
	}

	results := make([]endpoint.ItemResult, len(ops))
	for i, op := range ops {
		id := op.ID
		if id == "" {
			e.nextAuto++
			id = fmt.Sprintf("auto-%d", e.nextAuto)
		}
		results[i] = endpoint.ItemResult{ID: id, Status: http.StatusCreated}

		if f, ok := e.docFailures[op.ID]; ok && op.ID != "" {
			f.seen++
			if f.times == 0 || f.seen <= f.times {
				results[i].Status = f.status
				results[i].Reason = f.reason
				continue
			}
		}

		idx, ok := e.docs[op.Target]
		if !ok {
			idx = make(map[string][]byte)
			e.docs[op.Target] = idx
		}
		if _, exists := idx[id]; exists {
			results[i].Status = http.StatusOK
		}
		idx[id] = append([]byte(nil), op.Source...)
	}
	return results, nil
}

// Ping returns PingErr.
func (e *Endpoint) Ping(ctx context.Context) error {
	return e.PingErr
}

// EnsureTarget creates an empty collection for target.
func (e *Endpoint) EnsureTarget(ctx context.Context, target string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.docs[target]; !ok {
		e.docs[target] = make(map[string][]byte)
	}
	return nil
}

// Count returns the number of distinct documents stored under target.
func (e *Endpoint) Count(ctx context.Context, target string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int64(len(e.docs[target])), nil
}

// Search reports every stored document of target as a hit.
func (e *Endpoint) Search(ctx context.Context, target string, body []byte) (*endpoint.SearchResult, error) {
	if e.SearchFunc != nil {
		return e.SearchFunc(ctx, target, body)
	}
	n, _ := e.Count(ctx, target)
	return &endpoint.SearchResult{Status: http.StatusOK, TotalHits: n, HasTotal: true}, nil
}

// Close marks the endpoint closed.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Closed reports whether Close was called.
func (e *Endpoint) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Document returns the stored payload of id in target.
func (e *Endpoint) Document(target, id string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	src, ok := e.docs[target][id]
	return src, ok
}

// Calls returns the document ids of every bulk request, in call order.
func (e *Endpoint) Calls() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, len(e.calls))
	for i, c := range e.calls {
		out[i] = append([]string(nil), c...)
	}
	return out
}

// Attempts returns how many bulk requests carried id.
func (e *Endpoint) Attempts(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		for _, got := range c {
			if got == id {
				n++
			}
		}
	}
	return n
}
