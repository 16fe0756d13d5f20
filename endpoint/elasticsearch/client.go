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

package elasticsearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/poiesic/bulkload/core"
	"github.com/poiesic/bulkload/endpoint"
)

// Client implements endpoint.Endpoint on top of the Elasticsearch REST API.
type Client struct {
	es        *es.Client
	transport *http.Transport
	logger    *slog.Logger
}

var _ endpoint.Endpoint = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// newClient is an internal constructor that returns the concrete type.
func newClient(config *endpoint.Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	// Retries are owned by the ingestion pipeline, which resubmits only the
	// documents that are still pending.
	client, err := es.NewClient(es.Config{
		Addresses:    config.Addresses,
		Username:     config.Username,
		Password:     config.Password,
		APIKey:       config.APIKey,
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		es:        client,
		transport: transport,
		logger:    slog.Default().With("component", "elasticsearch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// New creates an Elasticsearch endpoint from config.
//
// Returns endpoint.Endpoint interface to keep callers independent of the wire format.
func New(config *endpoint.Config, opts ...Option) (endpoint.Endpoint, error) {
	return newClient(config, opts...)
}

type bulkAction struct {
	Index bulkActionMeta `json:"index"`
}

type bulkActionMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id,omitempty"`
}

// encodeBulkBody renders ops as newline-delimited action/source pairs.
func encodeBulkBody(ops []core.IndexOperation) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, op := range ops {
		// Encode appends the newline that terminates the action line
		if err := enc.Encode(bulkAction{Index: bulkActionMeta{Index: op.Target, ID: op.ID}}); err != nil {
			return nil, err
		}
		buf.Write(op.Source)
		buf.WriteByte('\n')
	}
	return &buf, nil
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string     `json:"_id"`
	Status int        `json:"status"`
	Error  *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

// Bulk submits ops through the _bulk API and maps every response item to an ItemResult.
func (c *Client) Bulk(ctx context.Context, ops []core.IndexOperation) ([]endpoint.ItemResult, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	body, err := encodeBulkBody(ops)
	if err != nil {
		return nil, &core.PermanentDocumentError{Reason: fmt.Sprintf("encoding bulk body: %v", err)}
	}

	res, err := c.es.Bulk(body, c.es.Bulk.WithContext(ctx))
	if err != nil {
		return nil, &core.TransientEndpointError{Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, classifyResponse(res)
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, &core.TransientEndpointError{Status: res.StatusCode, Err: fmt.Errorf("decoding bulk response: %w", err)}
	}

	results := make([]endpoint.ItemResult, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		// Each item holds exactly one key: the action name
		for _, r := range item {
			ir := endpoint.ItemResult{ID: r.ID, Status: r.Status}
			if r.Error != nil {
				ir.ErrorType = r.Error.Type
				ir.Reason = r.Error.Reason
			}
			results = append(results, ir)
		}
	}

	c.logger.Debug("bulk request complete", "docs", len(ops), "errors", parsed.Errors)
	return results, nil
}

// Ping checks reachability and credentials.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return &core.TransientEndpointError{Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return classifyResponse(res)
	}
	return nil
}

// EnsureTarget creates the index if it is missing.
func (c *Client) EnsureTarget(ctx context.Context, target string) error {
	res, err := c.es.Indices.Exists([]string{target}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return &core.TransientEndpointError{Err: err}
	}
	res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		c.logger.Info("index already exists, documents will be added or updated", "index", target)
		return nil
	case res.StatusCode != http.StatusNotFound:
		return classifyResponse(res)
	}

	c.logger.Info("creating index", "index", target)
	res, err = c.es.Indices.Create(target, c.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return &core.TransientEndpointError{Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		cerr := classifyResponse(res)
		// Another writer created it between the two calls
		if errors.Is(cerr, errIndexExists) {
			return nil
		}
		return cerr
	}
	return nil
}

// Count returns the number of documents in target.
func (c *Client) Count(ctx context.Context, target string) (int64, error) {
	res, err := c.es.Count(c.es.Count.WithContext(ctx), c.es.Count.WithIndex(target))
	if err != nil {
		return 0, &core.TransientEndpointError{Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, classifyResponse(res)
	}

	var parsed struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}
	return parsed.Count, nil
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits *struct {
		Total json.RawMessage `json:"total"`
	} `json:"hits"`
}

// Search posts body to target/_search.
func (c *Client) Search(ctx context.Context, target string, body []byte) (*endpoint.SearchResult, error) {
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(target),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, &core.TransientEndpointError{Err: err}
	}
	defer res.Body.Close()

	result := &endpoint.SearchResult{Status: res.StatusCode}
	if res.IsError() {
		return result, classifyResponse(res)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return result, fmt.Errorf("decoding search response: %w", err)
	}
	result.Took = parsed.Took
	if parsed.Hits != nil && len(parsed.Hits.Total) > 0 {
		result.TotalHits, result.HasTotal = parseTotal(parsed.Hits.Total)
	}
	return result, nil
}

// parseTotal accepts both {"value": n} and the older bare-number form.
func parseTotal(raw json.RawMessage) (int64, bool) {
	var obj struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Value, true
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	return 0, false
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.logger.Debug("closing elasticsearch client")
	c.transport.CloseIdleConnections()
	return nil
}

var errIndexExists = errors.New("index already exists")

// classifyResponse converts a non-2xx response into the pipeline's error taxonomy.
func classifyResponse(res *esapi.Response) error {
	errType, reason := readError(res.Body)
	status := res.StatusCode

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &core.FatalConfigurationError{
			Reason: fmt.Sprintf("credentials rejected (status %d)", status),
			Err:    errors.New(describe(errType, reason)),
		}
	case errType == "index_not_found_exception" || errType == "invalid_index_name_exception":
		return &core.FatalConfigurationError{
			Reason: "invalid target collection",
			Err:    errors.New(describe(errType, reason)),
		}
	case errType == "resource_already_exists_exception":
		return fmt.Errorf("%w: %s", errIndexExists, reason)
	case status == http.StatusTooManyRequests || status >= 500:
		return &core.TransientEndpointError{Status: status, Err: errors.New(describe(errType, reason))}
	default:
		return &core.PermanentDocumentError{Status: status, Reason: describe(errType, reason)}
	}
}

func readError(body io.Reader) (string, string) {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return "", ""
	}

	var parsed errorResponse
	if err := json.Unmarshal(data, &parsed); err != nil || len(parsed.Error) == 0 {
		return "", string(data)
	}

	var eb errorBody
	if err := json.Unmarshal(parsed.Error, &eb); err == nil && eb.Type != "" {
		return eb.Type, eb.Reason
	}
	var msg string
	if err := json.Unmarshal(parsed.Error, &msg); err == nil {
		return "", msg
	}
	return "", string(parsed.Error)
}

func describe(errType, reason string) string {
	switch {
	case errType != "" && reason != "":
		return errType + ": " + reason
	case errType != "":
		return errType
	case reason != "":
		return reason
	default:
		return "no error detail"
	}
}
