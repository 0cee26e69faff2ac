// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces that crawl workers use to report per-page progress. The
// hub fans events out to pluggable sinks such as Prometheus collectors, a
// live stats snapshot, or structured logs.
package progress
