package probe

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/dom"
)

// Simulate sweeps an in-memory layout. The caller's goroutine acts as the
// host loop: scroll occurrences are fired directly and frames are ticked
// after every ScrollsPerFrame positions, so results are deterministic. An
// empty track list tracks every element of the layout.
func (p *Prober) Simulate(ctx context.Context, source string, layout dom.Layout, track []string) (Result, error) {
	r, err := p.begin(source)
	if err != nil {
		return Result{}, err
	}
	err = r.simulate(ctx, layout, track)
	return r.finish(err), err
}

func (r *run) simulate(ctx context.Context, layout dom.Layout, track []string) error {
	doc, err := dom.Build(layout)
	if err != nil {
		return fmt.Errorf("build layout: %w", err)
	}
	nodes := doc.Nodes()
	if len(track) > 0 {
		if nodes, err = doc.Lookup(track...); err != nil {
			return fmt.Errorf("resolve tracked elements: %w", err)
		}
	}
	if len(nodes) == 0 {
		return ErrNoElements
	}
	r.attach(doc, nodes)
	r.listen()
	defer r.stop()
	r.bus.FireLoad()

	sweep := r.p.cfg.Sweep
	ps := positions(sweep.Start, sweep.end(doc.MaxScrollY()), sweep.Step)
	limiter := sweep.limiter()
	resizeAt := sweep.resizeAt(len(ps))
	r.logger.Debug("simulated sweep",
		zap.Int("positions", len(ps)),
		zap.Int("scrolls_per_frame", sweep.ScrollsPerFrame),
	)

	for i := 0; i < len(ps); i += sweep.ScrollsPerFrame {
		last := min(i+sweep.ScrollsPerFrame, len(ps))
		for j := i; j < last; j++ {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("sweep pacing: %w", err)
			}
			if j == resizeAt {
				doc.SetViewportHeight(sweep.ResizeTo)
				r.bus.FireResize()
			}
			r.bus.FireScroll(doc.SetScrollY(ps[j]))
			r.positions++
		}
		r.loop.Tick()
	}
	if r.resp.Pending() {
		r.loop.Tick()
	}
	return nil
}
