package probe

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/browser"
)

// Probe sweeps a live page. Occurrences reported by the page are posted to a
// host loop running at the configured frame rate, so coalescing happens the
// way it does in a browser. Resizes take a fresh snapshot that is applied in
// place before the responder recalculates.
func (p *Prober) Probe(ctx context.Context, b Browser, url string, selectors []string) (Result, error) {
	r, err := p.begin(url)
	if err != nil {
		return Result{}, err
	}
	err = r.probe(ctx, b, url, selectors)
	return r.finish(err), err
}

func (r *run) probe(ctx context.Context, b Browser, url string, selectors []string) error {
	loopCtx, cancel := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = r.loop.Run(loopCtx)
	}()
	defer func() {
		cancel()
		<-loopDone
	}()

	var live atomic.Bool
	work := &inflight{}
	defer work.Close()

	count, err := b.Open(ctx, url, selectors, func(occ browser.Occurrence) {
		if live.Load() {
			r.deliver(loopCtx, b, work, occ)
		}
	})
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	snap, err := b.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	doc, nodes, err := snap.Document()
	if err != nil {
		if errors.Is(err, browser.ErrNoElements) {
			return fmt.Errorf("%w: no element matches %v", ErrNoElements, selectors)
		}
		return err
	}
	r.logger.Info("page opened", zap.Int("registered", count), zap.Int("tracked", len(nodes)))
	maxScrollY := doc.MaxScrollY()
	r.attach(doc, nodes)
	if err := r.loop.Do(ctx, func() {
		r.listen()
		r.bus.FireLoad()
	}); err != nil {
		return fmt.Errorf("start responder: %w", err)
	}
	live.Store(true)

	sweep := r.p.cfg.Sweep
	ps := positions(sweep.Start, sweep.end(maxScrollY), sweep.Step)
	limiter := sweep.limiter()
	resizeAt := sweep.resizeAt(len(ps))
	for i, y := range ps {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("sweep pacing: %w", err)
		}
		if i == resizeAt {
			if err := b.SetViewport(ctx, r.p.cfg.ViewportWidth, int(sweep.ResizeTo)); err != nil {
				return fmt.Errorf("resize viewport: %w", err)
			}
		}
		if _, err := b.ScrollTo(ctx, y); err != nil {
			return fmt.Errorf("scroll to %.0f: %w", y, err)
		}
		r.positions++
	}

	if err := r.settle(ctx, work); err != nil {
		return err
	}
	live.Store(false)
	if err := r.loop.Do(ctx, r.stop); err != nil {
		return fmt.Errorf("stop responder: %w", err)
	}
	return nil
}

// deliver forwards one page occurrence to the loop. It runs on a CDP event
// goroutine and must not block.
func (r *run) deliver(ctx context.Context, b Browser, work *inflight, occ browser.Occurrence) {
	switch occ.Kind {
	case browser.KindLoad:
		r.post(r.bus.FireLoad)
	case browser.KindScroll:
		y := occ.Y
		r.post(func() {
			r.bus.FireScroll(r.doc.SetScrollY(y))
		})
	case browser.KindResize:
		work.Go(func() {
			snap, err := b.Snapshot(ctx)
			if err != nil {
				r.logger.Warn("resize snapshot failed", zap.Error(err))
				return
			}
			r.post(func() {
				if err := snap.Apply(r.doc); err != nil {
					r.logger.Warn("apply resize snapshot failed", zap.Error(err))
					return
				}
				r.bus.FireResize()
			})
		})
	}
}

func (r *run) post(fn func()) {
	if err := r.loop.Post(fn); err != nil {
		r.logger.Debug("occurrence dropped", zap.Error(err))
	}
}

// settle lets trailing occurrences arrive, then waits two frames so any
// pending or rescheduled evaluation has run.
func (r *run) settle(ctx context.Context, work *inflight) error {
	timer := time.NewTimer(r.p.cfg.Settle)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return fmt.Errorf("settle: %w", ctx.Err())
	}
	work.Close()
	for i := 0; i < 2; i++ {
		if err := r.nextFrame(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) nextFrame(ctx context.Context) error {
	done := make(chan struct{})
	if err := r.loop.Do(ctx, func() {
		r.loop.RequestFrame(func() { close(done) })
	}); err != nil {
		return fmt.Errorf("request frame: %w", err)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for frame: %w", ctx.Err())
	}
}
