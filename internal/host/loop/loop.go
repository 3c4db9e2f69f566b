// Package loop provides the single-threaded event loop that hosts a
// responder. Every host callback (load, resize, scroll and frame ticks) runs
// on the goroutine executing Run, so the callbacks never need locking.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrQueueFull is returned when a task cannot be queued without blocking.
var ErrQueueFull = errors.New("loop queue full")

const (
	defaultFrameDuration = 16 * time.Millisecond
	defaultQueueSize     = 1024
	dropLogInterval      = 5 * time.Second
)

// Recorder observes loop activity.
type Recorder interface {
	FrameTicked(callbacks int, took time.Duration)
	PanicRecovered(kind string)
}

type nopRecorder struct{}

func (nopRecorder) FrameTicked(int, time.Duration) {}

func (nopRecorder) PanicRecovered(string) {}

// Config controls the loop.
//   - FrameDuration: interval between frame ticks (default 16ms).
//   - QueueSize: buffered task capacity (default 1024).
//   - Logger: optional structured logger.
//   - Recorder: optional metrics hook.
type Config struct {
	FrameDuration time.Duration
	QueueSize     int
	Logger        *zap.Logger
	Recorder      Recorder
}

// Loop runs posted tasks and frame callbacks on one goroutine.
type Loop struct {
	cfg      Config
	tasks    chan func()
	logger   *zap.Logger
	recorder Recorder

	mu     sync.Mutex
	frames []func()

	ticks   atomic.Int64
	dropped atomic.Int64
	dropLog rate.Sometimes
}

// New builds a Loop; call Run to start processing.
func New(cfg Config) *Loop {
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = defaultFrameDuration
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Loop{
		cfg:      cfg,
		tasks:    make(chan func(), cfg.QueueSize),
		logger:   logger,
		recorder: recorder,
		dropLog:  rate.Sometimes{Interval: dropLogInterval},
	}
}

// FrameDuration returns the configured tick interval.
func (l *Loop) FrameDuration() time.Duration {
	return l.cfg.FrameDuration
}

// Post queues fn for the loop goroutine. It never blocks; when the queue is
// full the task is dropped and ErrQueueFull returned.
func (l *Loop) Post(fn func()) error {
	select {
	case l.tasks <- fn:
		return nil
	default:
		l.dropped.Add(1)
		l.dropLog.Do(func() {
			l.logger.Warn("loop tasks dropped due to backpressure", zap.Int64("dropped", l.dropped.Swap(0)))
		})
		return ErrQueueFull
	}
}

// Do posts fn and waits until it has run.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := l.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("loop task wait: %w", ctx.Err())
	}
}

// RequestFrame schedules fn for the next frame tick. Callbacks requested while
// a tick is running execute on the following tick.
func (l *Loop) RequestFrame(fn func()) {
	l.mu.Lock()
	l.frames = append(l.frames, fn)
	l.mu.Unlock()
}

// Tick runs every frame callback requested before the tick started.
func (l *Loop) Tick() {
	start := time.Now()
	l.mu.Lock()
	run := l.frames
	l.frames = nil
	l.mu.Unlock()

	for _, fn := range run {
		l.call("frame", fn)
	}
	l.ticks.Add(1)
	l.recorder.FrameTicked(len(run), time.Since(start))
}

// Ticks returns the number of frame ticks executed.
func (l *Loop) Ticks() int64 {
	return l.ticks.Load()
}

// Run processes tasks and frame ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.FrameDuration)
	defer ticker.Stop()
	l.logger.Debug("loop started", zap.Duration("frame", l.cfg.FrameDuration))
	for {
		select {
		case <-ctx.Done():
			l.drain()
			l.logger.Debug("loop stopped", zap.Int64("ticks", l.ticks.Load()))
			return nil
		case fn := <-l.tasks:
			l.call("task", fn)
		case <-ticker.C:
			l.Tick()
		}
	}
}

// drain runs tasks already queued so Do callers are released.
func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.tasks:
			l.call("task", fn)
		default:
			return
		}
	}
}

// call runs fn and reports a panic the way a browser reports an uncaught
// exception: logged, counted, and the loop carries on.
func (l *Loop) call(kind string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			l.recorder.PanicRecovered(kind)
			l.logger.Error("loop callback panicked",
				zap.String("kind", kind),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
		}
	}()
	fn()
}
