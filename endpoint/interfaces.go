package endpoint

import (
	"context"

	"github.com/poiesic/bulkload/core"
)

// Endpoint is a bulk-write search service.
// Implementations must be safe for concurrent use.
type Endpoint interface {
	// Bulk submits ops as one request and returns one result per operation, in order.
	// A non-nil error means no per-document results are available; it should be a
	// *core.TransientEndpointError or *core.FatalConfigurationError.
	Bulk(ctx context.Context, ops []core.IndexOperation) ([]ItemResult, error)

	// Ping checks that the service is reachable and the credentials are accepted.
	Ping(ctx context.Context) error

	// EnsureTarget creates the target collection if it does not exist.
	EnsureTarget(ctx context.Context, target string) error

	// Count returns the number of documents in the target collection.
	Count(ctx context.Context, target string) (int64, error)

	// Search runs a raw query body against the target collection.
	Search(ctx context.Context, target string, body []byte) (*SearchResult, error)

	// Close releases idle connections held by the endpoint.
	Close() error
}

// ItemResult is the endpoint's verdict on one document of a bulk request.
type ItemResult struct {
	// ID is the document identifier, assigned by the endpoint when the request had none.
	ID string

	// Status is the HTTP-style status code reported for this document.
	Status int

	// ErrorType and Reason describe a rejection; both are empty on success.
	ErrorType string
	Reason    string
}

// Succeeded reports whether the document was written.
func (r ItemResult) Succeeded() bool {
	return r.Status >= 200 && r.Status < 300
}

// Detail formats the rejection for logs and error samples.
func (r ItemResult) Detail() string {
	switch {
	case r.ErrorType != "" && r.Reason != "":
		return r.ErrorType + ": " + r.Reason
	case r.Reason != "":
		return r.Reason
	default:
		return r.ErrorType
	}
}

// SearchResult is the part of a search response the load generator inspects.
type SearchResult struct {
	Status    int
	TotalHits int64
	HasTotal  bool
	Took      int64
}
