// Package metrics exposes run and load-test instrumentation as Prometheus metrics.
//
// A Metrics value registers its collectors on the Registerer it is given, so
// tests and concurrent runs can use private registries. Serve publishes a
// Gatherer on /metrics until its context is cancelled.
package metrics
