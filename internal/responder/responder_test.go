package responder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	name   string
	top    float64
	height float64
	parent *fakeNode
}

type fakeDoc struct {
	scrollY  float64
	viewport float64
}

func (d *fakeDoc) OffsetTop(n *fakeNode) float64 {
	return n.top
}

func (d *fakeDoc) OffsetParent(n *fakeNode) (*fakeNode, bool) {
	if n.parent == nil {
		return nil, false
	}
	return n.parent, true
}

func (d *fakeDoc) ClientHeight(n *fakeNode) float64 { return n.height }
func (d *fakeDoc) ScrollY() float64                 { return d.scrollY }
func (d *fakeDoc) ViewportHeight() float64          { return d.viewport }

// manualFrames stores requested callbacks so tests can run a frame on demand.
type manualFrames struct {
	queued []func()
}

func (m *manualFrames) RequestFrame(fn func()) {
	m.queued = append(m.queued, fn)
}

func (m *manualFrames) tick() int {
	run := m.queued
	m.queued = nil
	for _, fn := range run {
		fn()
	}
	return len(run)
}

type call struct {
	name     string
	progress float64
}

type recorder struct {
	calls []call
}

func (r *recorder) animate(n *fakeNode, p float64) {
	r.calls = append(r.calls, call{name: n.name, progress: p})
}

type countingRecorder struct {
	scrolls, coalesced, evaluations, recalcs int
}

func (c *countingRecorder) ScrollObserved(coalesced bool) {
	c.scrolls++
	if coalesced {
		c.coalesced++
	}
}

func (c *countingRecorder) Evaluated(int, time.Duration)    { c.evaluations++ }
func (c *countingRecorder) Recalculated(int, time.Duration) { c.recalcs++ }

func newScenario(opts Options[*fakeNode]) (*Responder[*fakeNode], *fakeDoc, *manualFrames, *recorder, *fakeNode) {
	doc := &fakeDoc{viewport: 800}
	el := &fakeNode{name: "hero", top: 1000, height: 200}
	frames := &manualFrames{}
	rec := &recorder{}
	r := New[*fakeNode](doc, frames, []*fakeNode{el}, rec.animate, opts)
	return r, doc, frames, rec, el
}

func TestRecalculateWalksOffsetParentChain(t *testing.T) {
	t.Parallel()

	root := &fakeNode{name: "body", top: 10}
	section := &fakeNode{name: "section", top: 400, parent: root}
	el := &fakeNode{name: "card", top: 90, height: 120, parent: section}
	doc := &fakeDoc{viewport: 600}

	r := New[*fakeNode](doc, &manualFrames{}, []*fakeNode{el}, func(*fakeNode, float64) {}, Options[*fakeNode]{})
	r.Recalculate()

	m, ok := r.Metrics(el)
	require.True(t, ok)
	require.Equal(t, Metrics{OffsetTop: 500, ClientHeight: 120, OffsetBottom: 620}, m)
	require.Equal(t, 600.0, r.ViewportHeight())
}

func TestRecalculateIsIdempotent(t *testing.T) {
	t.Parallel()

	r, _, _, _, el := newScenario(Options[*fakeNode]{})
	r.Recalculate()
	first, ok := r.Metrics(el)
	require.True(t, ok)

	r.Recalculate()
	second, ok := r.Metrics(el)
	require.True(t, ok)
	require.Equal(t, first, second)
}

func TestRecalculateRunsPreCalculateAfterMetrics(t *testing.T) {
	t.Parallel()

	var r *Responder[*fakeNode]
	var seen []Metrics
	r, _, _, _, _ = newScenario(Options[*fakeNode]{
		PreCalculate: func(el *fakeNode) {
			m, ok := r.Metrics(el)
			require.True(t, ok)
			seen = append(seen, m)
		},
	})
	r.Recalculate()
	require.Equal(t, []Metrics{{OffsetTop: 1000, ClientHeight: 200, OffsetBottom: 1200}}, seen)
}

func TestRecalculatePicksUpResize(t *testing.T) {
	t.Parallel()

	r, doc, frames, rec, el := newScenario(Options[*fakeNode]{})
	r.Recalculate()

	el.height = 400
	doc.viewport = 500
	r.Recalculate()

	m, _ := r.Metrics(el)
	require.Equal(t, 1400.0, m.OffsetBottom)
	require.Equal(t, 500.0, r.ViewportHeight())

	doc.scrollY = 600
	r.OnScroll(600)
	frames.tick()
	require.Len(t, rec.calls, 1)
	require.InDelta(t, 100.0/900.0, rec.calls[0].progress, 1e-12)
}

func TestEvaluateConcreteScenario(t *testing.T) {
	t.Parallel()

	r, doc, frames, rec, _ := newScenario(Options[*fakeNode]{})
	r.Recalculate()

	doc.scrollY = 300
	r.OnScroll(300)
	require.Equal(t, 1, frames.tick())
	require.Equal(t, []call{{name: "hero", progress: 0.1}}, rec.calls)

	rec.calls = nil
	doc.scrollY = 1250
	r.OnScroll(1250)
	require.Equal(t, 1, frames.tick())
	require.Empty(t, rec.calls)
}

func TestEvaluateSkipsUnmeasuredElements(t *testing.T) {
	t.Parallel()

	r, doc, frames, rec, _ := newScenario(Options[*fakeNode]{})
	doc.scrollY = 300
	r.OnScroll(300)
	frames.tick()
	require.Empty(t, rec.calls)
	require.False(t, r.Pending())
}

func TestEvaluateVisibleWindow(t *testing.T) {
	t.Parallel()

	r, doc, frames, rec, _ := newScenario(Options[*fakeNode]{})
	r.Recalculate()

	// Window is (offsetTop - bound, offsetBottom) = (200, 1200).
	for _, y := range []float64{200.5, 201, 500, 999, 1199, 1199.9} {
		rec.calls = nil
		doc.scrollY = y
		r.OnScroll(y)
		frames.tick()
		require.Len(t, rec.calls, 1, "y=%v", y)
		require.Greater(t, rec.calls[0].progress, 0.0)
		require.Less(t, rec.calls[0].progress, 1.0)
	}
	for _, y := range []float64{0, 200, 1200, 5000} {
		rec.calls = nil
		doc.scrollY = y
		r.OnScroll(y)
		frames.tick()
		require.Empty(t, rec.calls, "y=%v", y)
	}
}

func TestProgressStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	m := Metrics{OffsetTop: 1000, ClientHeight: 200, OffsetBottom: 1200}
	bound := 800.0
	prev := Progress(201, bound, m)
	for y := 202.0; y < 1200; y += 7 {
		p := Progress(y, bound, m)
		require.Greater(t, p, prev, "y=%v", y)
		prev = p
	}
}

func TestProgressIsNotClamped(t *testing.T) {
	t.Parallel()

	m := Metrics{OffsetTop: 1000, ClientHeight: 200, OffsetBottom: 1200}
	require.Less(t, Progress(100, 800, m), 0.0)
	require.Greater(t, Progress(1300, 800, m), 1.0)
	require.Equal(t, 0.0, Clamp(Progress(100, 800, m)))
	require.Equal(t, 1.0, Clamp(Progress(1300, 800, m)))
	require.Equal(t, 0.5, Clamp(0.5))
}

func TestOnScrollCoalescesWithinFrame(t *testing.T) {
	t.Parallel()

	counts := &countingRecorder{}
	r, doc, frames, rec, _ := newScenario(Options[*fakeNode]{Recorder: counts})
	r.Recalculate()

	for i := 0; i < 10; i++ {
		r.OnScroll(float64(250 + i*10))
	}
	require.True(t, r.Pending())
	require.Len(t, frames.queued, 1)
	require.Equal(t, 340.0, r.LatestScrollY())

	// The evaluation reads the live offset, not the recorded one.
	doc.scrollY = 300
	require.Equal(t, 1, frames.tick())
	require.Equal(t, []call{{name: "hero", progress: 0.1}}, rec.calls)
	require.False(t, r.Pending())

	require.Equal(t, 10, counts.scrolls)
	require.Equal(t, 9, counts.coalesced)
	require.Equal(t, 1, counts.evaluations)
	require.Equal(t, 1, counts.recalcs)
}

func TestScrollAfterFrameSchedulesAgain(t *testing.T) {
	t.Parallel()

	r, doc, frames, rec, _ := newScenario(Options[*fakeNode]{})
	r.Recalculate()

	doc.scrollY = 300
	r.OnScroll(300)
	frames.tick()
	r.OnScroll(400)
	require.Len(t, frames.queued, 1)
	doc.scrollY = 400
	frames.tick()
	require.Len(t, rec.calls, 2)
}

func TestScrollDuringCallbackSchedulesFreshFrame(t *testing.T) {
	t.Parallel()

	doc := &fakeDoc{viewport: 800, scrollY: 300}
	el := &fakeNode{name: "hero", top: 1000, height: 200}
	frames := &manualFrames{}
	var r *Responder[*fakeNode]
	calls := 0
	r = New[*fakeNode](doc, frames, []*fakeNode{el}, func(*fakeNode, float64) {
		calls++
		if calls == 1 {
			r.OnScroll(320)
		}
	}, Options[*fakeNode]{})
	r.Recalculate()

	r.OnScroll(300)
	require.Equal(t, 1, frames.tick())
	require.True(t, r.Pending())
	require.Len(t, frames.queued, 1)

	require.Equal(t, 1, frames.tick())
	require.Equal(t, 2, calls)
	require.False(t, r.Pending())
}

func TestHideAtScrollTopShrinksBound(t *testing.T) {
	t.Parallel()

	// Element above the fold: bound shrinks by the part already visible.
	require.Equal(t, 200.0, EffectiveBound(ViewportBound(), 800, true, 200))
	require.Equal(t, 800.0, EffectiveBound(ViewportBound(), 800, false, 200))
	// Element below the fold: flag has no effect.
	require.Equal(t, 800.0, EffectiveBound(ViewportBound(), 800, true, 800))
	require.Equal(t, 800.0, EffectiveBound(ViewportBound(), 800, true, 1000))
	// Fixed bounds are reduced the same way.
	require.Equal(t, 100.0, EffectiveBound(FixedBound(500), 800, true, 400))
	require.Equal(t, 500.0, EffectiveBound(FixedBound(500), 800, true, 900))
}

func TestHideAtScrollTopStartsAtZeroFromPageTop(t *testing.T) {
	t.Parallel()

	doc := &fakeDoc{viewport: 800}
	el := &fakeNode{name: "intro", top: 300, height: 200}
	frames := &manualFrames{}
	rec := &recorder{}
	r := New[*fakeNode](doc, frames, []*fakeNode{el}, rec.animate, Options[*fakeNode]{HideAtScrollTop: true})
	r.Recalculate()

	// bound = 800 - (800 - 300) = 300, so y + 300 > 300 needs y > 0.
	r.OnScroll(0)
	frames.tick()
	require.Empty(t, rec.calls)

	doc.scrollY = 250
	r.OnScroll(250)
	frames.tick()
	require.Len(t, rec.calls, 1)
	require.InDelta(t, 250.0/500.0, rec.calls[0].progress, 1e-12)
}

func TestFixedUpperBound(t *testing.T) {
	t.Parallel()

	r, doc, frames, rec, _ := newScenario(Options[*fakeNode]{UpperBound: FixedBound(400)})
	r.Recalculate()

	doc.scrollY = 500
	r.OnScroll(500)
	frames.tick()
	require.Empty(t, rec.calls)

	doc.scrollY = 700
	r.OnScroll(700)
	frames.tick()
	require.Len(t, rec.calls, 1)
	require.InDelta(t, 100.0/600.0, rec.calls[0].progress, 1e-12)
}

func TestEvaluateOrderFollowsConstruction(t *testing.T) {
	t.Parallel()

	doc := &fakeDoc{viewport: 800, scrollY: 500}
	a := &fakeNode{name: "a", top: 900, height: 100}
	b := &fakeNode{name: "b", top: 600, height: 100}
	c := &fakeNode{name: "c", top: 1000, height: 100}
	frames := &manualFrames{}
	rec := &recorder{}
	r := New[*fakeNode](doc, frames, []*fakeNode{a, b, c}, rec.animate, Options[*fakeNode]{})
	r.Recalculate()

	for i := 0; i < 3; i++ {
		rec.calls = nil
		r.OnScroll(500)
		frames.tick()
		require.Equal(t, []string{"a", "b", "c"}, names(rec.calls))
	}
}

func TestAnimatePanicStopsFrameButNotScheduler(t *testing.T) {
	t.Parallel()

	doc := &fakeDoc{viewport: 800, scrollY: 500}
	a := &fakeNode{name: "a", top: 900, height: 100}
	b := &fakeNode{name: "b", top: 600, height: 100}
	frames := &manualFrames{}
	var seen []string
	fail := true
	r := New[*fakeNode](doc, frames, []*fakeNode{a, b}, func(n *fakeNode, _ float64) {
		if fail && n.name == "a" {
			panic("animate failed")
		}
		seen = append(seen, n.name)
	}, Options[*fakeNode]{})
	r.Recalculate()

	r.OnScroll(500)
	require.Panics(t, func() { frames.tick() })
	require.Empty(t, seen)
	require.False(t, r.Pending())

	fail = false
	r.OnScroll(510)
	require.Equal(t, 1, frames.tick())
	require.Equal(t, []string{"a", "b"}, seen)
}

func TestInertResponderRegistersNothing(t *testing.T) {
	t.Parallel()

	src := &countingSource{}
	frames := &manualFrames{}
	evaluated := false
	r := New[*fakeNode](&fakeDoc{viewport: 800}, frames, nil, func(*fakeNode, float64) {
		evaluated = true
	}, Options[*fakeNode]{})

	stop := r.Listen(src)
	stop()
	require.True(t, r.Inert())
	require.Zero(t, src.registered)

	r.OnScroll(100)
	r.Recalculate()
	require.Empty(t, frames.queued)
	require.False(t, evaluated)
	require.Zero(t, r.ViewportHeight())
}

func TestListenWiresAndStops(t *testing.T) {
	t.Parallel()

	src := &countingSource{}
	r, doc, frames, rec, _ := newScenario(Options[*fakeNode]{})
	stop := r.Listen(src)
	require.Equal(t, 3, src.registered)

	src.load()
	doc.scrollY = 300
	src.scroll(300)
	frames.tick()
	require.Len(t, rec.calls, 1)

	stop()
	stop()
	require.Equal(t, 3, src.cancelled)
	require.Nil(t, src.load)
	require.Nil(t, src.scroll)
}

func names(calls []call) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.name)
	}
	return out
}

type countingSource struct {
	registered int
	cancelled  int
	load       func()
	resize     func()
	scroll     func(float64)
}

func (s *countingSource) OnLoad(fn func()) func() {
	s.registered++
	s.load = fn
	return func() { s.cancelled++; s.load = nil }
}

func (s *countingSource) OnResize(fn func()) func() {
	s.registered++
	s.resize = fn
	return func() { s.cancelled++; s.resize = nil }
}

func (s *countingSource) OnScroll(fn func(float64)) func() {
	s.registered++
	s.scroll = fn
	return func() { s.cancelled++; s.scroll = nil }
}
