package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls the headless Chrome instance.
type Config struct {
	ExecPath     string
	Headless     bool
	WindowWidth  int
	WindowHeight int
	UserAgent    string
	NavTimeout   time.Duration
	// Binding overrides the runtime binding name (DefaultBinding when empty).
	Binding string
}

const defaultNavTimeout = 30 * time.Second

// Session owns one Chrome allocator and a single tab.
type Session struct {
	cfg     Config
	logger  *zap.Logger
	binding string

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu       sync.Mutex
	handler func(Occurrence)
	closed  bool
}

// NewSession starts Chrome and opens a blank tab.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		return nil, errors.New("window width and height must be > 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = defaultNavTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	binding := cfg.Binding
	if binding == "" {
		binding = DefaultBinding
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	s := &Session{
		cfg:         cfg,
		logger:      logger,
		binding:     binding,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}
	chromedp.ListenTarget(tabCtx, s.onTargetEvent)
	return s, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Close tears down the tab and the browser process.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.handler = nil
	s.mu.Unlock()
	s.tabCancel()
	s.allocCancel()
}

// Open navigates to url, registers the elements matching selectors and routes
// page occurrences to onEvent. onEvent runs on a chromedp event goroutine and
// must hand work off to the host loop. It returns the tracked element count.
func (s *Session) Open(ctx context.Context, url string, selectors []string, onEvent func(Occurrence)) (int, error) {
	if len(selectors) == 0 {
		return 0, errors.New("at least one selector is required")
	}
	script, err := installScript(s.binding, selectors)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.handler = onEvent
	s.mu.Unlock()

	var tracked int
	err = s.run(ctx, s.cfg.NavTimeout,
		runtime.AddBinding(s.binding),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(script, &tracked),
	)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", url, err)
	}
	if tracked == 0 {
		return 0, ErrNoElements
	}
	s.logger.Info("page opened", zap.String("url", url), zap.Int("tracked", tracked))
	return tracked, nil
}

// Snapshot reads the layout of every registered node.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Evaluate(snapshotScript, &snap)); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	if len(snap.Tracked) == 0 {
		return Snapshot{}, ErrNoElements
	}
	return snap, nil
}

// ScrollTo scrolls the page and returns the offset the page applied.
func (s *Session) ScrollTo(ctx context.Context, y float64) (float64, error) {
	var applied float64
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Evaluate(scrollScript(y), &applied)); err != nil {
		return 0, fmt.Errorf("scroll to %g: %w", y, err)
	}
	return applied, nil
}

// SetViewport resizes the emulated viewport, which fires a page resize.
func (s *Session) SetViewport(ctx context.Context, width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.New("viewport width and height must be > 0")
	}
	err := s.run(ctx, s.cfg.NavTimeout,
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false),
	)
	if err != nil {
		return fmt.Errorf("set viewport %dx%d: %w", width, height, err)
	}
	return nil
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (s *Session) onTargetEvent(ev any) {
	called, ok := ev.(*runtime.EventBindingCalled)
	if !ok || called.Name != s.binding {
		return
	}
	s.dispatch(called.Payload)
}

func (s *Session) dispatch(payload string) {
	occ, err := DecodeOccurrence(payload)
	if err != nil {
		s.logger.Warn("discarding binding payload", zap.Error(err))
		return
	}
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(occ)
	}
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
