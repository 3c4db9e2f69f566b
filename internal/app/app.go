// Package app builds scrollprobe's long-lived services from configuration and
// runs probes and the HTTP server on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/api"
	"github.com/JakeFAU/scrollprobe/internal/browser"
	"github.com/JakeFAU/scrollprobe/internal/clock/system"
	"github.com/JakeFAU/scrollprobe/internal/config"
	"github.com/JakeFAU/scrollprobe/internal/dom"
	idgen "github.com/JakeFAU/scrollprobe/internal/id/uuid"
	"github.com/JakeFAU/scrollprobe/internal/logging"
	"github.com/JakeFAU/scrollprobe/internal/metrics"
	"github.com/JakeFAU/scrollprobe/internal/probe"
	"github.com/JakeFAU/scrollprobe/internal/progress"
	progresssinks "github.com/JakeFAU/scrollprobe/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/scrollprobe/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/scrollprobe/internal/storage/gcs"
	localstorage "github.com/JakeFAU/scrollprobe/internal/storage/local"
	memorystorage "github.com/JakeFAU/scrollprobe/internal/storage/memory"
	pgstore "github.com/JakeFAU/scrollprobe/internal/storage/postgres"
	"github.com/JakeFAU/scrollprobe/internal/store"
	"github.com/JakeFAU/scrollprobe/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	registry     *prometheus.Registry
	collectors   *metrics.Collectors
	progressHub  *progress.Hub
	tracker      *probe.Tracker
	prober       *probe.Prober
	apiServer    *api.Server
	blobStore    progresssinks.BlobStore
	blobSink     *progresssinks.BlobSink
	storage      *storage.Client
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
	progressRepo store.ProgressRepository
	pgStore      *pgstore.ProgressStore
	checks       []api.ReadinessCheck
	tracerProv   *sdktrace.TracerProvider
	tracer       trace.Tracer
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, logger)
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		tracker:  probe.NewTracker(),
	}
	app.collectors = metrics.New(app.registry)
	app.logger.Info("building application dependencies", zap.Int("server_port", cfg.Server.Port))

	if err := app.setupStorage(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	if err := app.setupDatabase(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	if err := app.setupPublisher(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	if err := app.setupProgress(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	tp, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry)
	if err != nil {
		_ = app.progressHub.Close(ctx)
		app.closeInfrastructure()
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}
	app.tracerProv = tp
	app.tracer = tp.Tracer("github.com/JakeFAU/scrollprobe/internal/app")

	app.prober = probe.New(
		probeConfig(cfg, app.collectors),
		app.progressHub,
		app.tracker,
		idgen.New(),
		system.New(),
		app.logger.Named("probe"),
	)
	app.apiServer = api.NewServer(
		app.tracker,
		app.progressRepo,
		app.collectors,
		cfg,
		app.logger.Named("api"),
		app.checks...,
	)
	return app, nil
}

func probeConfig(cfg config.Config, collectors *metrics.Collectors) probe.Config {
	pc := probe.Config{
		UpperBound:      cfg.Responder.UpperBound,
		HideAtScrollTop: cfg.Responder.HideAtScrollTop,
		Sweep: probe.Sweep{
			Start:           cfg.Sweep.Start,
			End:             cfg.Sweep.End,
			Step:            cfg.Sweep.Step,
			ScrollsPerFrame: cfg.Sweep.ScrollsPerFrame,
			Rate:            cfg.Sweep.Rate,
			Burst:           cfg.Sweep.Burst,
			ResizeTo:        cfg.Sweep.ResizeTo,
		},
		FrameDuration: cfg.Loop.FrameDuration,
		QueueSize:     cfg.Loop.QueueSize,
		ViewportWidth: cfg.Browser.WindowWidth,
	}
	if collectors != nil {
		pc.Recorder = collectors
		pc.LoopRecorder = collectors
	}
	return pc
}

func (a *App) setupStorage(ctx context.Context) error {
	blob := a.cfg.Sinks.Blob
	if !blob.Enabled {
		a.logger.Info("trace blob sink disabled")
		return nil
	}
	var err error
	switch blob.Backend {
	case config.BlobBackendGCS:
		a.logger.Info("using GCS storage backend")
		a.storage, err = storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.blobStore, err = gcsstorage.New(a.storage, blob.GCS)
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Debug("GCS storage backend", zap.String("bucket", blob.GCS.Bucket))
	case config.BlobBackendLocal:
		a.logger.Info("using local storage backend")
		a.blobStore, err = localstorage.New(blob.Local)
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Debug("local storage backend", zap.String("path", blob.Local.BaseDir))
	default:
		a.logger.Info("using in-memory storage backend")
		a.blobStore = memorystorage.NewBlobStore()
	}
	return nil
}

func (a *App) setupDatabase(ctx context.Context) error {
	pg := a.cfg.Sinks.Postgres
	if !pg.Enabled {
		a.logger.Info("postgres disabled, keeping run history in memory")
		a.progressRepo = memorystorage.NewProgressStore()
		return nil
	}
	var err error
	a.pgStore, err = pgstore.NewProgressStore(ctx, pgstore.Config{
		DSN:             pg.DSN,
		MaxConns:        pg.MaxConns,
		MinConns:        pg.MinConns,
		MaxConnLifetime: pg.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("progress store init failed: %w", err)
	}
	if pg.EnsureSchema {
		if err := a.pgStore.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("progress store schema: %w", err)
		}
	}
	a.progressRepo = a.pgStore
	a.checks = append(a.checks, api.ReadinessCheck{Name: "postgres", Check: a.pgStore.Ping})
	a.logger.Info("postgres progress store initialized")
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	ps := a.cfg.Sinks.PubSub
	if !ps.Enabled {
		a.logger.Debug("Pub/Sub publishing disabled")
		return nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, ps.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.publisher = gcppublisher.New(a.pubsubClient, map[string]string{"producer": "scrollprobe"})
	a.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", ps.ProjectID),
		zap.String("topic", ps.Topic),
	)
	return nil
}

func (a *App) setupProgress(ctx context.Context) error {
	sinks := a.cfg.Sinks
	var sinkList []progress.Sink
	if a.progressRepo != nil {
		sinkList = append(sinkList, progresssinks.NewStoreSink(a.progressRepo, a.logger.Named("progress_store")))
		a.logger.Debug("Added progress store sink")
	}
	if sinks.Log.Enabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(a.logger.Named("progress_log")))
		a.logger.Debug("Added progress log sink")
	}
	if sinks.Prometheus.Enabled {
		promSink, err := progresssinks.NewPrometheusSink(a.registry)
		if err != nil {
			return fmt.Errorf("prometheus sink init failed: %w", err)
		}
		sinkList = append(sinkList, promSink)
		a.logger.Debug("Added progress prometheus sink")
	}
	if a.blobStore != nil {
		a.blobSink = progresssinks.NewBlobSink(a.blobStore, sinks.Blob.Prefix, a.logger.Named("progress_blob"))
		sinkList = append(sinkList, a.blobSink)
		a.logger.Debug("Added progress blob sink", zap.String("prefix", sinks.Blob.Prefix))
	}
	if a.publisher != nil {
		sinkList = append(sinkList, progresssinks.NewPublishSink(a.publisher, sinks.PubSub.Topic, a.logger.Named("progress_publish")))
		a.logger.Debug("Added progress publish sink", zap.String("topic", sinks.PubSub.Topic))
	}

	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   a.cfg.Progress.MaxBatchWait,
		SinkTimeout:    a.cfg.Progress.SinkTimeout,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         a.logger.Named("progress_hub"),
	}
	a.progressHub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Info("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Tracker returns the latest-progress table served at /v1/progress.
func (a *App) Tracker() *probe.Tracker {
	return a.tracker
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Simulate runs a probe against an in-memory layout.
func (a *App) Simulate(ctx context.Context, source string, layout dom.Layout, track []string) (probe.Result, error) {
	ctx, span := a.tracer.Start(ctx, "simulate", trace.WithAttributes(attribute.String("probe.source", source)))
	defer span.End()

	res, err := a.prober.Simulate(ctx, source, layout, track)
	endRunSpan(span, res, err)
	if err != nil {
		return res, fmt.Errorf("simulate %s: %w", source, err)
	}
	return res, nil
}

// Probe launches headless Chrome and runs a probe against url. Empty
// selectors fall back to the configured ones.
func (a *App) Probe(ctx context.Context, url string, selectors []string) (probe.Result, error) {
	if url == "" {
		url = a.cfg.Browser.URL
	}
	if url == "" {
		return probe.Result{}, errors.New("probe requires a url")
	}
	if len(selectors) == 0 {
		selectors = a.cfg.Browser.Selectors
	}
	session, err := browser.NewSession(browser.Config{
		ExecPath:     a.cfg.Browser.ExecPath,
		Headless:     a.cfg.Browser.Headless,
		WindowWidth:  a.cfg.Browser.WindowWidth,
		WindowHeight: a.cfg.Browser.WindowHeight,
		UserAgent:    a.cfg.Browser.UserAgent,
		NavTimeout:   a.cfg.Browser.NavTimeout,
	}, a.logger.Named("browser"))
	if err != nil {
		return probe.Result{}, fmt.Errorf("start browser: %w", err)
	}
	defer session.Close()

	ctx, span := a.tracer.Start(ctx, "probe", trace.WithAttributes(attribute.String("probe.source", url)))
	defer span.End()

	res, err := a.prober.Probe(ctx, session, url, selectors)
	endRunSpan(span, res, err)
	if err != nil {
		return res, fmt.Errorf("probe %s: %w", url, err)
	}
	return res, nil
}

func endRunSpan(span trace.Span, res probe.Result, err error) {
	span.SetAttributes(
		attribute.String("probe.run_id", res.RunID.String()),
		attribute.Int("probe.elements", res.Elements),
		attribute.Int64("probe.frames", res.Frames),
		attribute.Int64("probe.samples", res.Samples),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// TraceURI returns where the JSON-lines trace of runID was written. Traces are
// uploaded when the hub delivers the run's final event, so the URI is
// reliably available after Close.
func (a *App) TraceURI(runID uuid.UUID) (string, bool) {
	if a.blobSink == nil {
		return "", false
	}
	return a.blobSink.URI(runID)
}

// Serve runs the HTTP API until ctx is canceled or a termination signal
// arrives. A non-nil job runs alongside the server, typically a probe whose
// progress is watched through /v1/progress.
func (a *App) Serve(ctx context.Context, job func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	if job != nil {
		go func() {
			if err := job(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("background probe failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	return nil
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}

// Close flushes pending progress events and releases every client.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closeInfrastructure()
	if a.tracerProv != nil {
		if err := a.tracerProv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeInfrastructure() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}
