// Package ingestion moves delimited records into a bulk-indexing endpoint.
//
// A run is a chain of stages with data flowing strictly forward:
//
//	RecordSource -> Translator -> Batcher -> Submitter -> Aggregator
//
// The Pipeline drives the chain. A single producer goroutine reads records,
// translates them into index operations and groups them into size-bounded
// batches. A dispatcher hands each batch to an ants pool as its own task; the
// pool size (MaxInFlight) bounds the bulk requests in flight.
//
// # Retry model
//
// The Submitter tracks the outcome of every document in a batch. Documents that
// succeed or fail permanently are resolved immediately; only documents that are
// still retryable are resubmitted, after an exponential, jittered backoff, until
// the retry budget runs out. A permanently rejected document is never sent again.
//
// # Accounting
//
// The Aggregator is the only state shared between workers. For a complete run
// every submitted document ends as exactly one success or fatal failure:
//
//	Succeeded + FatallyFailed == Submitted
//
// A cancelled run additionally counts the documents it abandoned mid-retry.
//
// # Errors
//
// Per-document failures never abort a run. A run is aborted only by malformed
// input under the abort policy or by a core.FatalConfigurationError raised before
// any document was written. Run returns the finalized summary together with the
// aborting error.
package ingestion
