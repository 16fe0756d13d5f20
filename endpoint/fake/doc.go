// Package fake provides an in-memory endpoint.Endpoint for tests.
//
// The fake stores documents with upsert semantics keyed by target and document
// ID, records every bulk call, and lets tests script failures per request or per
// document:
//
//	ep := fake.New()
//	ep.FailDocument("doc-7", 400, "mapper_parsing_exception")
//	ep.FailRequests(2, &core.TransientEndpointError{Err: context.DeadlineExceeded})
//
//	// ... run the pipeline ...
//
//	calls := ep.Calls() // ids sent in each bulk request, in order
package fake
