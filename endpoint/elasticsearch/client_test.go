package elasticsearch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/endpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCluster speaks enough of the Elasticsearch REST API for the client tests.
type fakeCluster struct {
	mu          sync.Mutex
	indices     map[string]bool
	bulkBodies  [][]byte
	bulkStatus  func(i int, meta bulkActionMeta) (int, *errorBody)
	forceStatus int
	forceError  string
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{indices: make(map[string]bool)}
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.forceStatus != 0 {
		w.WriteHeader(f.forceStatus)
		if r.Method != http.MethodHead {
			fmt.Fprintf(w, `{"error":{"type":%q,"reason":"forced"},"status":%d}`, f.forceError, f.forceStatus)
		}
		return
	}

	path := strings.Trim(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodHead && path == "":
		w.WriteHeader(http.StatusOK)
	case path == "_bulk":
		f.handleBulk(w, r)
	case r.Method == http.MethodHead:
		if f.indices[path] {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut:
		if f.indices[path] {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"type":"resource_already_exists_exception","reason":"exists"},"status":400}`)
			return
		}
		f.indices[path] = true
		fmt.Fprintf(w, `{"acknowledged":true,"index":%q}`, path)
	case strings.HasSuffix(path, "/_count"):
		fmt.Fprint(w, `{"count":42}`)
	case strings.HasSuffix(path, "/_search"):
		fmt.Fprint(w, `{"took":3,"hits":{"total":{"value":7,"relation":"eq"},"hits":[]}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeCluster) handleBulk(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.bulkBodies = append(f.bulkBodies, body)

	var items []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	i := 0
	for scanner.Scan() {
		var action bulkAction
		if err := json.Unmarshal(scanner.Bytes(), &action); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		scanner.Scan() // document line

		status, eb := 201, (*errorBody)(nil)
		if f.bulkStatus != nil {
			status, eb = f.bulkStatus(i, action.Index)
		}
		id := action.Index.ID
		if id == "" {
			id = fmt.Sprintf("auto-%d", i)
		}
		item := fmt.Sprintf(`{"index":{"_index":%q,"_id":%q,"status":%d`, action.Index.Index, id, status)
		if eb != nil {
			item += fmt.Sprintf(`,"error":{"type":%q,"reason":%q}`, eb.Type, eb.Reason)
		}
		items = append(items, item+"}}")
		i++
	}
	fmt.Fprintf(w, `{"took":1,"errors":false,"items":[%s]}`, strings.Join(items, ","))
}

func setupClient(t *testing.T, cluster *fakeCluster) *Client {
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	c, err := newClient(endpoint.NewConfig(endpoint.WithAddresses(srv.URL)))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func ops(ids ...string) []core.IndexOperation {
	out := make([]core.IndexOperation, len(ids))
	for i, id := range ids {
		out[i] = core.IndexOperation{
			Target: "events",
			ID:     id,
			Source: []byte(fmt.Sprintf(`{"n":%d}`, i)),
			Line:   i + 2,
		}
	}
	return out
}

func TestEncodeBulkBody(t *testing.T) {
	body, err := encodeBulkBody([]core.IndexOperation{
		{Target: "events", ID: `a"b`, Source: []byte(`{"x":1}`)},
		{Target: "events", Source: []byte(`{"x":2}`)},
	})
	require.NoError(t, err)

	want := `{"index":{"_index":"events","_id":"a\"b"}}` + "\n" +
		`{"x":1}` + "\n" +
		`{"index":{"_index":"events"}}` + "\n" +
		`{"x":2}` + "\n"
	assert.Equal(t, want, body.String())
}

func TestBulk_AllSucceed(t *testing.T) {
	cluster := newFakeCluster()
	c := setupClient(t, cluster)

	results, err := c.Bulk(context.Background(), ops("a", "b", "c"))
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, results[i].ID)
		assert.True(t, results[i].Succeeded())
	}
	require.Len(t, cluster.bulkBodies, 1)
}

func TestBulk_PartialFailure(t *testing.T) {
	cluster := newFakeCluster()
	cluster.bulkStatus = func(i int, meta bulkActionMeta) (int, *errorBody) {
		switch meta.ID {
		case "bad":
			return 400, &errorBody{Type: "mapper_parsing_exception", Reason: "failed to parse"}
		case "busy":
			return 429, &errorBody{Type: "es_rejected_execution_exception", Reason: "queue full"}
		}
		return 200, nil
	}
	c := setupClient(t, cluster)

	results, err := c.Bulk(context.Background(), ops("ok", "bad", "busy"))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 200, results[0].Status)
	assert.Equal(t, 400, results[1].Status)
	assert.Equal(t, "mapper_parsing_exception", results[1].ErrorType)
	assert.Equal(t, 429, results[2].Status)
}

func TestBulk_AssignedIDs(t *testing.T) {
	c := setupClient(t, newFakeCluster())

	results, err := c.Bulk(context.Background(), ops(""))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "auto-0", results[0].ID)
}

func TestBulk_RequestLevelErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		errorType string
		sentinel  error
	}{
		{"unauthorized", http.StatusUnauthorized, "security_exception", core.ErrFatalConfiguration},
		{"forbidden", http.StatusForbidden, "security_exception", core.ErrFatalConfiguration},
		{"missing index", http.StatusNotFound, "index_not_found_exception", core.ErrFatalConfiguration},
		{"rate limited", http.StatusTooManyRequests, "es_rejected_execution_exception", core.ErrTransientEndpoint},
		{"unavailable", http.StatusServiceUnavailable, "unavailable_shards_exception", core.ErrTransientEndpoint},
		{"bad request", http.StatusBadRequest, "illegal_argument_exception", core.ErrPermanentDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cluster := newFakeCluster()
			cluster.forceStatus = tt.status
			cluster.forceError = tt.errorType
			c := setupClient(t, cluster)

			results, err := c.Bulk(context.Background(), ops("a"))
			require.Error(t, err)
			assert.Nil(t, results)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestBulk_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(newFakeCluster())
	addr := srv.URL
	srv.Close()

	c, err := newClient(endpoint.NewConfig(endpoint.WithAddresses(addr)))
	require.NoError(t, err)

	_, err = c.Bulk(context.Background(), ops("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransientEndpoint)
}

func TestBulk_Empty(t *testing.T) {
	cluster := newFakeCluster()
	c := setupClient(t, cluster)

	results, err := c.Bulk(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, cluster.bulkBodies)
}

func TestPing(t *testing.T) {
	c := setupClient(t, newFakeCluster())
	require.NoError(t, c.Ping(context.Background()))

	cluster := newFakeCluster()
	cluster.forceStatus = http.StatusUnauthorized
	c = setupClient(t, cluster)
	assert.ErrorIs(t, c.Ping(context.Background()), core.ErrFatalConfiguration)
}

func TestEnsureTarget(t *testing.T) {
	cluster := newFakeCluster()
	c := setupClient(t, cluster)
	ctx := context.Background()

	require.NoError(t, c.EnsureTarget(ctx, "events"))
	assert.True(t, cluster.indices["events"])

	// Second call sees the index and does nothing
	require.NoError(t, c.EnsureTarget(ctx, "events"))
}

func TestCountAndSearch(t *testing.T) {
	c := setupClient(t, newFakeCluster())
	ctx := context.Background()

	n, err := c.Count(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	res, err := c.Search(ctx, "events", []byte(`{"query":{"match_all":{}}}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.True(t, res.HasTotal)
	assert.Equal(t, int64(7), res.TotalHits)
	assert.Equal(t, int64(3), res.Took)
}

func TestParseTotal(t *testing.T) {
	n, ok := parseTotal(json.RawMessage(`{"value":12,"relation":"eq"}`))
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)

	n, ok = parseTotal(json.RawMessage(`34`))
	assert.True(t, ok)
	assert.Equal(t, int64(34), n)

	_, ok = parseTotal(json.RawMessage(`"x"`))
	assert.False(t, ok)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(endpoint.NewConfig(endpoint.WithAddresses()))
	assert.Error(t, err)
}
