package probe

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/browser"
	"github.com/JakeFAU/scrollprobe/internal/clock/system"
	"github.com/JakeFAU/scrollprobe/internal/dom"
	"github.com/JakeFAU/scrollprobe/internal/host/loop"
	idgen "github.com/JakeFAU/scrollprobe/internal/id/uuid"
	"github.com/JakeFAU/scrollprobe/internal/progress"
	"github.com/JakeFAU/scrollprobe/internal/responder"
)

// ErrNoElements is returned when a run has nothing to track.
var ErrNoElements = errors.New("no elements to track")

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewRunID() (uuid.UUID, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Browser is the page a Probe run scrolls. browser.Session satisfies it.
type Browser interface {
	Open(ctx context.Context, url string, selectors []string, onEvent func(browser.Occurrence)) (int, error)
	Snapshot(ctx context.Context) (browser.Snapshot, error)
	ScrollTo(ctx context.Context, y float64) (float64, error)
	SetViewport(ctx context.Context, width, height int) error
}

var _ Browser = (*browser.Session)(nil)

// Sweep describes the scroll positions a run visits.
//   - Start, End: sweep range; End 0 means the maximum scroll offset.
//   - Step: distance between positions (default 50).
//   - ScrollsPerFrame: scroll occurrences delivered before each simulated
//     frame (default 1). Ignored by browser runs, whose frames are real.
//   - Rate, Burst: pacing in positions per second; Rate 0 disables it.
//   - ResizeTo: new viewport height applied halfway through when > 0.
type Sweep struct {
	Start           float64
	End             float64
	Step            float64
	ScrollsPerFrame int
	Rate            float64
	Burst           int
	ResizeTo        float64
}

// Config controls a Prober.
type Config struct {
	UpperBound      float64
	HideAtScrollTop bool
	Sweep           Sweep
	FrameDuration   time.Duration
	QueueSize       int
	// ViewportWidth is kept when a browser run resizes the viewport.
	ViewportWidth int
	// Settle bounds how long a browser run waits for trailing occurrences.
	Settle       time.Duration
	Recorder     responder.Recorder
	LoopRecorder loop.Recorder
}

const (
	defaultStep          = 50
	defaultViewportWidth = 1280
	defaultSettle        = 250 * time.Millisecond
)

// Result summarizes a finished run.
type Result struct {
	RunID       uuid.UUID
	Source      string
	Elements    int
	Positions   int
	Samples     int64
	Frames      int64
	Duration    time.Duration
	FinalScroll float64
	Latest      []Sample
}

// Prober runs probes. A Prober may run several probes sequentially; the
// Tracker always reflects the most recent one.
type Prober struct {
	cfg     Config
	emitter progress.Emitter
	tracker *Tracker
	ids     IDGenerator
	clock   Clock
	logger  *zap.Logger
}

// New constructs a Prober.
func New(
	cfg Config,
	emitter progress.Emitter,
	tracker *Tracker,
	ids IDGenerator,
	clock Clock,
	logger *zap.Logger,
) *Prober {
	if cfg.Sweep.Step <= 0 {
		cfg.Sweep.Step = defaultStep
	}
	if cfg.Sweep.ScrollsPerFrame <= 0 {
		cfg.Sweep.ScrollsPerFrame = 1
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = defaultViewportWidth
	}
	if cfg.Settle <= 0 {
		cfg.Settle = defaultSettle
	}
	if emitter == nil {
		emitter = progress.EmitterFunc(func(progress.Event) {})
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	if ids == nil {
		ids = idgen.New()
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		cfg:     cfg,
		emitter: emitter,
		tracker: tracker,
		ids:     ids,
		clock:   clock,
		logger:  logger,
	}
}

// Tracker returns the latest-progress table fed by this Prober.
func (p *Prober) Tracker() *Tracker {
	return p.tracker
}

func (p *Prober) options() responder.Options[*dom.Node] {
	bound := responder.ViewportBound()
	if p.cfg.UpperBound > 0 {
		bound = responder.FixedBound(p.cfg.UpperBound)
	}
	return responder.Options[*dom.Node]{
		UpperBound:      bound,
		HideAtScrollTop: p.cfg.HideAtScrollTop,
		Logger:          p.logger.Named("responder"),
		Recorder:        p.cfg.Recorder,
	}
}

func (p *Prober) newLoop() *loop.Loop {
	return loop.New(loop.Config{
		FrameDuration: p.cfg.FrameDuration,
		QueueSize:     p.cfg.QueueSize,
		Logger:        p.logger.Named("loop"),
		Recorder:      p.cfg.LoopRecorder,
	})
}
