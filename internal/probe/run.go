package probe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/dom"
	"github.com/JakeFAU/scrollprobe/internal/host/events"
	"github.com/JakeFAU/scrollprobe/internal/host/loop"
	"github.com/JakeFAU/scrollprobe/internal/progress"
	"github.com/JakeFAU/scrollprobe/internal/responder"
)

// run holds the state of one probe. Everything except the counters is owned
// by the loop goroutine once listen has run.
type run struct {
	p      *Prober
	id     uuid.UUID
	source string
	start  time.Time
	logger *zap.Logger

	loop *loop.Loop
	bus  *events.Bus
	doc  *dom.Document
	resp *responder.Responder[*dom.Node]
	stop func()

	started   bool
	elements  int
	positions int
	samples   atomic.Int64
}

func (p *Prober) begin(source string) (*run, error) {
	id, err := p.ids.NewRunID()
	if err != nil {
		return nil, fmt.Errorf("new run id: %w", err)
	}
	return &run{
		p:      p,
		id:     id,
		source: source,
		start:  p.clock.Now(),
		logger: p.logger.With(zap.Stringer("run_id", id), zap.String("source", source)),
		loop:   p.newLoop(),
		bus:    events.NewBus(),
		stop:   func() {},
	}, nil
}

// attach builds the responder over doc and announces the run.
func (r *run) attach(doc *dom.Document, nodes []*dom.Node) {
	r.doc = doc
	r.resp = responder.New[*dom.Node](doc, r.loop, nodes, r.animate, r.p.options())
	r.announce(nodes)
}

func (r *run) announce(nodes []*dom.Node) {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	r.started = true
	r.elements = len(nodes)
	r.p.tracker.Begin(r.id, r.source, ids, r.start)
	r.emit(progress.Event{Stage: progress.StageRunStart, TS: r.start, Elements: len(nodes)})
	r.logger.Info("probe run started", zap.Int("elements", len(nodes)))
}

// listen wires the responder and the RECALC reporter onto the bus. The
// reporter is registered second so it observes the fresh metrics.
func (r *run) listen() {
	stopResponder := r.resp.Listen(r.bus)
	cancelLoad := r.bus.OnLoad(r.recalculated)
	cancelResize := r.bus.OnResize(r.recalculated)
	r.stop = func() {
		stopResponder()
		cancelLoad()
		cancelResize()
	}
}

func (r *run) recalculated() {
	r.emit(progress.Event{
		Stage:          progress.StageRecalc,
		Elements:       r.elements,
		ViewportHeight: r.resp.ViewportHeight(),
	})
}

// animate is the responder callback. It runs inside a frame tick, so the
// frame number is the tick currently executing.
func (r *run) animate(n *dom.Node, value float64) {
	now := r.p.clock.Now()
	frame := r.loop.Ticks() + 1
	y := r.doc.ScrollY()
	r.samples.Add(1)
	r.p.tracker.Record(Sample{
		Element:   n.ID(),
		Progress:  value,
		ScrollY:   y,
		Frame:     frame,
		UpdatedAt: now,
	})
	r.emit(progress.Event{
		Stage:    progress.StageProgress,
		TS:       now,
		Element:  n.ID(),
		ScrollY:  y,
		Progress: value,
		Frame:    frame,
	})
}

func (r *run) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(r.id)
	evt.Source = r.source
	if evt.TS.IsZero() {
		evt.TS = r.p.clock.Now()
	}
	r.p.emitter.Emit(evt)
}

// finish reports the outcome. A run that failed before it had elements still
// gets a RUN_START so consumers see a complete lifecycle.
func (r *run) finish(err error) Result {
	if !r.started {
		r.announce(nil)
	}
	now := r.p.clock.Now()
	dur := now.Sub(r.start)
	if dur < 0 {
		dur = 0
	}
	evt := progress.Event{Stage: progress.StageRunDone, TS: now, Dur: dur}
	if err != nil {
		evt.Stage = progress.StageRunError
		evt.Note = err.Error()
		r.logger.Error("probe run failed", zap.Error(err), zap.Duration("duration", dur))
	} else {
		r.logger.Info("probe run finished",
			zap.Int64("samples", r.samples.Load()),
			zap.Int64("frames", r.loop.Ticks()),
			zap.Duration("duration", dur),
		)
	}
	r.emit(evt)
	r.p.tracker.Finish(now, err)

	res := Result{
		RunID:     r.id,
		Source:    r.source,
		Elements:  r.elements,
		Positions: r.positions,
		Samples:   r.samples.Load(),
		Frames:    r.loop.Ticks(),
		Duration:  dur,
		Latest:    r.p.tracker.View().Elements,
	}
	if r.doc != nil {
		res.FinalScroll = r.doc.ScrollY()
	}
	return res
}

// inflight tracks goroutines started on behalf of browser occurrences.
type inflight struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (f *inflight) Go(fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		fn()
	}()
	return true
}

// Close refuses new work and waits for running goroutines.
func (f *inflight) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}
