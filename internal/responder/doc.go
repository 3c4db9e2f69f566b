// Package responder turns vertical scroll occurrences into per-element progress
// values in the 0..1 range and hands them to an animate callback.
//
// A Responder owns two cooperating pieces of state. The layout cache stores the
// document-relative top, height and bottom of every tracked element and is only
// refreshed on load and resize occurrences. The scheduler records each scroll
// occurrence and requests at most one evaluation per rendered frame from an
// injected FrameScheduler; the evaluation re-reads the live scroll offset and
// invokes the callback for every element inside its trigger window.
//
// The host environment (layout reads, event delivery and frame scheduling) is
// injected through the Document, EventSource and FrameScheduler interfaces. All
// methods must be called from the single goroutine that runs the host's event
// loop; the Responder performs no locking.
package responder
