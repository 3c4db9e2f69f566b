// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces used to report scroll-progress runs. The hub batches events on a
// background goroutine and fans them out to pluggable sinks such as structured
// logs, Prometheus metrics, blob traces, Pub/Sub or persistent storage.
package progress
