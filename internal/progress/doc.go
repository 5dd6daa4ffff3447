// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces the crawl driver uses to report discovery polls, per-item outcomes
// and terminal states. It batches events on a background goroutine and fans
// them out to pluggable sinks such as Prometheus metrics, the session store, or
// structured logs.
package progress
