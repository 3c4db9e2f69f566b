package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/scrollprobe/internal/progress"
)

// PrometheusSink exports probe progress metrics via Prometheus. It owns all
// collectors for runs started/completed/running and per-element progress.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runDuration   *prometheus.HistogramVec

	recalcs         prometheus.Counter
	samples         *prometheus.CounterVec
	progressRatio   *prometheus.HistogramVec
	elementProgress *prometheus.GaugeVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrollprobe_runs_started_total",
			Help: "Total probe runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrollprobe_runs_completed_total",
			Help: "Total probe runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scrollprobe_runs_running",
			Help: "Current number of running probe runs.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scrollprobe_run_duration_seconds",
			Help:    "Wall time per completed probe run.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"result"}),
		recalcs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrollprobe_recalculations_total",
			Help: "Layout recalculations observed across runs.",
		}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrollprobe_progress_samples_total",
			Help: "Animate callbacks partitioned by element.",
		}, []string{"element"}),
		progressRatio: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scrollprobe_progress_ratio",
			Help:    "Distribution of reported progress values per element.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"element"}),
		elementProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scrollprobe_element_progress",
			Help: "Most recent progress reported for an element.",
		}, []string{"element"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runDuration,
		s.recalcs,
		s.samples,
		s.progressRatio,
		s.elementProgress,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
		s.handleRunEvent(evt)
	case progress.StageRecalc:
		s.recalcs.Inc()
	case progress.StageProgress:
		s.samples.WithLabelValues(evt.Element).Inc()
		s.progressRatio.WithLabelValues(evt.Element).Observe(evt.Progress)
		s.elementProgress.WithLabelValues(evt.Element).Set(evt.Progress)
	}
}

func (s *PrometheusSink) handleRunEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
		return
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.observeDuration(evt, "success")
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeDuration(evt, "error")
	}
	if s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

func (s *PrometheusSink) observeDuration(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
