// Package sinks implements concrete progress consumers: Prometheus
// collectors, a live in-memory stats snapshot, and structured logging. Each
// sink satisfies the progress.Sink interface.
package sinks
