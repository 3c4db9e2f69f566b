package responder

import "time"

// Document exposes the layout reads a Responder performs against its host.
type Document[E comparable] interface {
	// OffsetTop returns the element's top offset relative to its offset parent.
	OffsetTop(el E) float64
	// OffsetParent returns the element's offset parent. ok is false once the
	// chain reaches the document root.
	OffsetParent(el E) (parent E, ok bool)
	// ClientHeight returns the element's current rendered height.
	ClientHeight(el E) float64
	// ScrollY returns the current vertical scroll offset.
	ScrollY() float64
	// ViewportHeight returns the current viewport height.
	ViewportHeight() float64
}

// FrameScheduler defers a callback to the next render tick. Requests are
// one-shot and cannot be withdrawn.
type FrameScheduler interface {
	RequestFrame(fn func())
}

// FrameFunc adapts a plain function to the FrameScheduler interface.
type FrameFunc func(fn func())

// RequestFrame calls f(fn).
func (f FrameFunc) RequestFrame(fn func()) {
	f(fn)
}

// EventSource delivers host occurrences. Every registration returns a function
// that removes the handler again.
type EventSource interface {
	OnLoad(fn func()) (cancel func())
	OnResize(fn func()) (cancel func())
	OnScroll(fn func(offset float64)) (cancel func())
}

// Recorder observes scheduler activity, typically to export metrics.
type Recorder interface {
	// ScrollObserved is called for every scroll occurrence; coalesced is true
	// when an evaluation was already pending.
	ScrollObserved(coalesced bool)
	// Evaluated is called once per evaluation pass with the number of animate
	// invocations.
	Evaluated(visible int, took time.Duration)
	// Recalculated is called once per layout cache pass.
	Recalculated(elements int, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ScrollObserved(bool) {}

func (nopRecorder) Evaluated(int, time.Duration) {}

func (nopRecorder) Recalculated(int, time.Duration) {}
