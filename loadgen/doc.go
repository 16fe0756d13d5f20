// Package loadgen drives concurrent search traffic against an endpoint.
//
// Each simulated user repeatedly builds a query from random vocabulary words,
// sends it, and waits a random think time before the next one. A run ends
// after a fixed duration, after a fixed number of requests, or when its
// context is cancelled, and produces a Report.
package loadgen
