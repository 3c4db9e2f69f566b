package responder

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// AnimateFunc receives an element and its progress through the trigger window.
type AnimateFunc[E comparable] func(el E, progress float64)

// Responder tracks a fixed list of elements and reports their scroll progress
// at most once per frame.
type Responder[E comparable] struct {
	doc      Document[E]
	frames   FrameScheduler
	elements []E
	animate  AnimateFunc[E]
	opts     Options[E]
	logger   *zap.Logger
	recorder Recorder

	metrics        map[E]Metrics
	viewportHeight float64
	latestScrollY  float64
	pending        bool
	evaluating     bool
	rescheduled    bool
	evaluateFn     func()
}

// New constructs a Responder over the supplied elements. The element order is
// the order in which animate is invoked within a frame. A Responder with no
// elements is inert: Listen registers nothing and no evaluation ever runs.
func New[E comparable](
	doc Document[E],
	frames FrameScheduler,
	elements []E,
	animate AnimateFunc[E],
	opts Options[E],
) *Responder[E] {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	r := &Responder[E]{
		doc:      doc,
		frames:   frames,
		elements: append([]E(nil), elements...),
		animate:  animate,
		opts:     opts,
		logger:   logger,
		recorder: recorder,
		metrics:  make(map[E]Metrics, len(elements)),
	}
	r.evaluateFn = r.Evaluate
	return r
}

// Inert reports whether the responder tracks no elements.
func (r *Responder[E]) Inert() bool {
	return len(r.elements) == 0
}

// Listen registers the load, resize and scroll handlers on src and returns a
// function that removes them. Inert responders register nothing.
func (r *Responder[E]) Listen(src EventSource) (stop func()) {
	if r.Inert() {
		r.logger.Debug("no elements tracked; responder is inert")
		return func() {}
	}
	cancels := []func(){
		src.OnLoad(r.Recalculate),
		src.OnResize(r.Recalculate),
		src.OnScroll(r.OnScroll),
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, cancel := range cancels {
				if cancel != nil {
					cancel()
				}
			}
		})
	}
}

// Recalculate refreshes the cached metrics of every element and the cached
// viewport height. It is driven by load and resize occurrences only.
func (r *Responder[E]) Recalculate() {
	if r.Inert() {
		return
	}
	start := time.Now()
	r.viewportHeight = r.doc.ViewportHeight()
	for _, el := range r.elements {
		r.metrics[el] = Measure(r.doc, el)
		if r.opts.PreCalculate != nil {
			r.opts.PreCalculate(el)
		}
	}
	r.recorder.Recalculated(len(r.elements), time.Since(start))
	r.logger.Debug("layout recalculated",
		zap.Int("elements", len(r.elements)),
		zap.Float64("viewport_height", r.viewportHeight),
	)
}

// OnScroll records the scroll offset and requests an evaluation on the next
// frame unless one is already pending.
func (r *Responder[E]) OnScroll(offset float64) {
	if r.Inert() {
		return
	}
	r.latestScrollY = offset
	if r.pending {
		if r.evaluating {
			r.rescheduled = true
		}
		r.recorder.ScrollObserved(true)
		return
	}
	r.pending = true
	r.recorder.ScrollObserved(false)
	r.frames.RequestFrame(r.evaluateFn)
}

// Evaluate computes progress for every element inside its trigger window and
// invokes animate for each of them in list order. Elements that have not been
// measured yet are skipped. The pending flag is cleared once the pass ends,
// including when animate panics.
func (r *Responder[E]) Evaluate() {
	start := time.Now()
	visible := 0
	r.evaluating = true
	defer func() {
		r.evaluating = false
		r.pending = false
		r.recorder.Evaluated(visible, time.Since(start))
		if r.rescheduled {
			r.rescheduled = false
			r.pending = true
			r.frames.RequestFrame(r.evaluateFn)
		}
	}()

	for _, el := range r.elements {
		m, ok := r.metrics[el]
		if !ok {
			continue
		}
		y := r.doc.ScrollY()
		bound := EffectiveBound(r.opts.UpperBound, r.viewportHeight, r.opts.HideAtScrollTop, m.OffsetTop)
		if !InWindow(y, bound, m) {
			continue
		}
		visible++
		r.animate(el, Progress(y, bound, m))
	}
}

// Metrics returns the cached layout record of el.
func (r *Responder[E]) Metrics(el E) (Metrics, bool) {
	m, ok := r.metrics[el]
	return m, ok
}

// Elements returns a copy of the tracked elements in evaluation order.
func (r *Responder[E]) Elements() []E {
	return append([]E(nil), r.elements...)
}

// ViewportHeight returns the viewport height cached by the last Recalculate.
func (r *Responder[E]) ViewportHeight() float64 {
	return r.viewportHeight
}

// LatestScrollY returns the offset delivered by the most recent OnScroll.
func (r *Responder[E]) LatestScrollY() float64 {
	return r.latestScrollY
}

// Pending reports whether an evaluation has been requested and not yet run.
func (r *Responder[E]) Pending() bool {
	return r.pending
}
