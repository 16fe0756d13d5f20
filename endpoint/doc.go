// Package endpoint defines the contract between the ingestion pipeline and a remote
// bulk-indexing service.
//
// The pipeline depends only on the Endpoint interface: a bulk call that accepts an
// ordered list of index operations and answers with one ItemResult per operation,
// in the same order. Implementations translate their product's wire format into
// this shape and classify request-level failures as core.TransientEndpointError or
// core.FatalConfigurationError.
//
// # Implementations
//
// The elasticsearch subpackage talks to Elasticsearch's _bulk API. The fake
// subpackage is an in-memory endpoint with upsert semantics and scriptable
// per-document failures, used by tests.
package endpoint
