// Package probe drives a responder through a scroll sweep and reports every
// progress callback as a progress.Event. Runs execute either against an
// in-memory dom.Document (Simulate) or a headless Chrome page (Probe).
package probe
