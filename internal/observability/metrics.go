// Package observability exposes Prometheus metrics for fusion runs.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons used as the "reason" label of fusion_scenes_dropped_total.
const (
	DropQuality   = "quality"
	DropLoad      = "load"
	DropNormalize = "normalize"
)

// FusionCollector bundles the run metrics. A nil *FusionCollector is valid
// and records nothing.
type FusionCollector struct {
	gatherer prometheus.Gatherer

	ScenesDiscovered prometheus.Counter
	ScenesDropped    *prometheus.CounterVec
	ScenesFused      prometheus.Counter
	StageDurations   *prometheus.HistogramVec
	Runs             *prometheus.CounterVec
	LastRunTime      prometheus.Gauge
	ValidFraction    prometheus.Gauge
}

// NewFusionCollector registers the fusion metrics against reg, defaulting to
// the global Prometheus registry when nil. Registering twice on the same
// registry returns the existing collectors.
func NewFusionCollector(reg prometheus.Registerer) (*FusionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	discovered, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fusion_scenes_discovered_total",
		Help: "Scenes returned by the catalog.",
	}), "fusion_scenes_discovered_total")
	if err != nil {
		return nil, err
	}
	dropped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_scenes_dropped_total",
		Help: "Scenes dropped before fusion, labeled by reason.",
	}, []string{"reason"}), "fusion_scenes_dropped_total")
	if err != nil {
		return nil, err
	}
	fused, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fusion_scenes_fused_total",
		Help: "Scenes that contributed to a fused output.",
	}), "fusion_scenes_fused_total")
	if err != nil {
		return nil, err
	}
	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fusion_stage_duration_seconds",
		Help:    "Wall time spent in each pipeline stage.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"stage"}), "fusion_stage_duration_seconds")
	if err != nil {
		return nil, err
	}
	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_runs_total",
		Help: "Completed fusion runs, labeled by final state.",
	}, []string{"outcome"}), "fusion_runs_total")
	if err != nil {
		return nil, err
	}
	lastRun, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fusion_last_run_timestamp_seconds",
		Help: "Unix time at which the last run finished.",
	}), "fusion_last_run_timestamp_seconds")
	if err != nil {
		return nil, err
	}
	validFraction, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fusion_output_valid_fraction",
		Help: "Fraction of output pixels holding a value in the last fused grid.",
	}), "fusion_output_valid_fraction")
	if err != nil {
		return nil, err
	}

	return &FusionCollector{
		gatherer:         gatherer,
		ScenesDiscovered: discovered,
		ScenesDropped:    dropped,
		ScenesFused:      fused,
		StageDurations:   durations,
		Runs:             runs,
		LastRunTime:      lastRun,
		ValidFraction:    validFraction,
	}, nil
}

// Discovered adds n catalog results.
func (c *FusionCollector) Discovered(n int) {
	if c == nil {
		return
	}
	c.ScenesDiscovered.Add(float64(n))
}

// Dropped records one scene dropped for reason.
func (c *FusionCollector) Dropped(reason string) {
	if c == nil {
		return
	}
	c.ScenesDropped.WithLabelValues(reason).Inc()
}

// Fused adds n contributing scenes.
func (c *FusionCollector) Fused(n int) {
	if c == nil {
		return
	}
	c.ScenesFused.Add(float64(n))
}

// ObserveStage records the duration of one stage.
func (c *FusionCollector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.StageDurations.WithLabelValues(stage).Observe(d.Seconds())
}

// RunFinished counts a run by outcome and stamps its finish time.
func (c *FusionCollector) RunFinished(outcome string, at time.Time, validFraction float64) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(outcome).Inc()
	c.LastRunTime.Set(float64(at.Unix()))
	c.ValidFraction.Set(validFraction)
}

// WriteTextfile writes every metric gathered from the collector's registry
// in the text exposition format, for node_exporter's textfile collector.
func (c *FusionCollector) WriteTextfile(path string) error {
	if c == nil {
		return fmt.Errorf("no metrics collector configured")
	}
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
