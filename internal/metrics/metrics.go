// Package metrics exposes Prometheus collectors for the scroll scheduler, the
// host frame loop and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors owns every scrollprobe collector registered on one registry. It
// satisfies responder.Recorder and loop.Recorder.
type Collectors struct {
	scrolls         *prometheus.CounterVec
	evaluations     prometheus.Counter
	animateCalls    prometheus.Counter
	evaluateSeconds prometheus.Histogram
	recalcs         prometheus.Counter
	recalcSeconds   prometheus.Histogram
	trackedElements prometheus.Gauge

	frames        prometheus.Counter
	frameSeconds  prometheus.Histogram
	frameCallback prometheus.Counter
	panics        *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry, which
// keeps tests independent of the global default.
func New(reg *prometheus.Registry) *Collectors {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Collectors{
		scrolls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrollprobe_scroll_occurrences_total",
			Help: "Scroll occurrences delivered to the scheduler, labeled by whether they were coalesced.",
		}, []string{"coalesced"}),
		evaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "scrollprobe_evaluations_total",
			Help: "Frame evaluations run by the scheduler.",
		}),
		animateCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "scrollprobe_animate_calls_total",
			Help: "Animate callbacks invoked for elements inside their trigger window.",
		}),
		evaluateSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scrollprobe_evaluation_duration_seconds",
			Help:    "Time spent in one frame evaluation.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.004, 0.008, 0.016, 0.033, 0.1},
		}),
		recalcs: factory.NewCounter(prometheus.CounterOpts{
			Name: "scrollprobe_layout_recalculations_total",
			Help: "Layout cache recalculations.",
		}),
		recalcSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scrollprobe_layout_recalculation_duration_seconds",
			Help:    "Time spent recalculating the layout cache.",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1},
		}),
		trackedElements: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scrollprobe_tracked_elements",
			Help: "Elements measured by the most recent recalculation.",
		}),
		frames: factory.NewCounter(prometheus.CounterOpts{
			Name: "scrollprobe_frames_total",
			Help: "Frame ticks executed by the host loop.",
		}),
		frameSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scrollprobe_frame_duration_seconds",
			Help:    "Time spent running frame callbacks in one tick.",
			Buckets: []float64{0.0005, 0.001, 0.004, 0.008, 0.016, 0.033, 0.1},
		}),
		frameCallback: factory.NewCounter(prometheus.CounterOpts{
			Name: "scrollprobe_frame_callbacks_total",
			Help: "Frame callbacks executed by the host loop.",
		}),
		panics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrollprobe_recovered_panics_total",
			Help: "Panics recovered by the host loop, labeled by callback kind.",
		}, []string{"kind"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		}, []string{"method", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route"}),
		gatherer: reg,
	}
}

// Handler returns an http.Handler exposing the collectors' registry.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// ScrollObserved counts one scroll occurrence.
func (c *Collectors) ScrollObserved(coalesced bool) {
	c.scrolls.WithLabelValues(strconv.FormatBool(coalesced)).Inc()
}

// Evaluated records one frame evaluation.
func (c *Collectors) Evaluated(visible int, took time.Duration) {
	c.evaluations.Inc()
	c.animateCalls.Add(float64(visible))
	c.evaluateSeconds.Observe(took.Seconds())
}

// Recalculated records one layout recalculation.
func (c *Collectors) Recalculated(elements int, took time.Duration) {
	c.recalcs.Inc()
	c.recalcSeconds.Observe(took.Seconds())
	c.trackedElements.Set(float64(elements))
}

// FrameTicked records a loop tick.
func (c *Collectors) FrameTicked(callbacks int, took time.Duration) {
	c.frames.Inc()
	c.frameCallback.Add(float64(callbacks))
	c.frameSeconds.Observe(took.Seconds())
}

// PanicRecovered counts a recovered callback panic.
func (c *Collectors) PanicRecovered(kind string) {
	c.panics.WithLabelValues(kind).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func (c *Collectors) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
