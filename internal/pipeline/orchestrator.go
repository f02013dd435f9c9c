package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/aoi"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/catalog"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/config"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/db"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fusion"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/normalize"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/observability"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/timeutil"
)

// Orchestrator runs the fusion pipeline. Settings, Catalog and IO are
// required; the remaining collaborators are optional.
type Orchestrator struct {
	Settings *config.Settings
	Catalog  catalog.Catalog
	IO       raster.IO

	Enhancer  normalize.EnhancementHook
	Sharpener normalize.SharpeningHook

	// Runs, when set, receives one provenance record per run.
	Runs db.RunStore
	// Metrics may be nil.
	Metrics *observability.FusionCollector
	// FS is used for the preview image; defaults to the OS filesystem.
	FS       fsutil.FileSystem
	Clock    timeutil.Clock
	Observer Observer
}

// sceneSlot holds one scene's progress. Each worker writes only its own slot.
type sceneSlot struct {
	handle     *scene.Handle
	cloud      float64
	masked     *raster.Grid
	normalized *raster.Grid
	drop       *Dropped
}

func (s *sceneSlot) alive() bool { return s.drop == nil }

func (o *Orchestrator) clock() timeutil.Clock {
	if o.Clock == nil {
		return timeutil.RealClock{}
	}
	return o.Clock
}

func (o *Orchestrator) workers() int {
	if o.Settings.Workers > 0 {
		return o.Settings.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Run executes one fusion over area, a WGS84 geometry. The returned Report
// is non-nil even on failure.
func (o *Orchestrator) Run(ctx context.Context, area orb.Geometry) (*Report, error) {
	clk := o.clock()
	rep := &Report{
		RunID:   uuid.NewString(),
		Policy:  o.Settings.Policy,
		Started: clk.Now(),
	}
	sm := newMachine(o.Observer)

	err := o.run(ctx, area, rep, sm)

	rep.Finished = clk.Now()
	rep.States = sm.history
	if err != nil {
		if !sm.current.Terminal() {
			sm.advance(StateAborted)
			rep.States = sm.history
		}
		rep.Err = err
		opsf("run %s aborted in %s: %v", rep.RunID, sm.history[len(sm.history)-2], err)
	}
	rep.State = sm.current
	o.finish(ctx, rep)
	return rep, err
}

func (o *Orchestrator) run(ctx context.Context, area orb.Geometry, rep *Report, sm *machine) error {
	s := o.Settings
	crs := s.TargetCRS
	if crs == config.AutoCRS {
		crs = ""
	}
	target, err := aoi.Target(area, crs, s.TargetResolution)
	if err != nil {
		return fmt.Errorf("target grid: %w", err)
	}
	rep.Target = target
	diagf("run %s: target %s, window %s, policy %s", rep.RunID, target, s.Window, s.Policy)

	slots, err := o.discover(ctx, area, rep)
	if err != nil {
		return err
	}

	sm.advance(StateFiltering)
	if err := o.stage(ctx, "filtering", slots, o.filterScene(area)); err != nil {
		return err
	}
	o.collectDrops(rep, slots)

	sm.advance(StateNormalizing)
	norm := &normalize.Normalizer{
		Reprojector:        o.IO,
		Target:             target,
		Kernel:             s.Kernel,
		EnhancementModelID: s.EnhancementModelID,
		Enhancer:           o.Enhancer,
		SharpenEnabled:     s.SharpenEnabled,
		Sharpener:          o.Sharpener,
	}
	if err := o.stage(ctx, "normalizing", slots, o.normalizeScene(norm)); err != nil {
		return err
	}
	for _, slot := range slots {
		if slot.drop != nil && slot.drop.Reason == DropNormalize {
			rep.drop(*slot.drop)
			o.Metrics.Dropped(observability.DropNormalize)
		}
	}

	layers := make([]fusion.Layer, 0, len(slots))
	contributors := make([]Contributor, 0, len(slots))
	for _, slot := range slots {
		if !slot.alive() {
			continue
		}
		d := slot.handle.Descriptor()
		w := s.Weight(d.Sensor)
		layers = append(layers, fusion.Layer{SceneID: d.ID, Grid: slot.normalized, Weight: w, Acquired: d.Acquired})
		contributors = append(contributors, Contributor{
			SceneID:      d.ID,
			Sensor:       d.Sensor,
			Acquired:     d.Acquired,
			CloudPercent: slot.cloud,
			Weight:       w,
		})
	}
	if len(layers) == 0 {
		return &EmptyInputError{Cause: emptyCause(rep), Discovered: rep.Discovered}
	}

	// Recency ages are measured from the inclusive end of the query window.
	opts := fusion.Options{
		Policy:    s.Policy,
		Reference: s.Window.End,
		Tolerance: s.Tolerance,
		Workers:   s.Workers,
	}
	eligible := fusion.Eligible(layers, opts)
	for _, i := range eligible {
		rep.Contributors = append(rep.Contributors, contributors[i])
	}
	if len(eligible) < len(layers) {
		diagf("run %s: %d scene(s) older than %s at window end do not contribute",
			rep.RunID, len(layers)-len(eligible), s.Tolerance)
	}

	sm.advance(StateFusing)
	start := o.clock().Now()
	fused, err := fusion.Fuse(ctx, layers, opts)
	o.Metrics.ObserveStage("fusing", o.clock().Since(start))
	if err != nil {
		return fmt.Errorf("fusion: %w", err)
	}
	rep.Fused = len(eligible)
	rep.Stats = raster.Summarize(fused)
	diagf("run %s: fused %d scene(s), valid fraction %.3f", rep.RunID, rep.Fused, rep.Stats.ValidFraction)

	sm.advance(StateExporting)
	start = o.clock().Now()
	err = o.export(ctx, fused, rep)
	o.Metrics.ObserveStage("exporting", o.clock().Since(start))
	if err != nil {
		return err
	}

	sm.advance(StateDone)
	return nil
}

// discover runs the catalog search and builds one slot per descriptor, in
// catalog order.
func (o *Orchestrator) discover(ctx context.Context, area orb.Geometry, rep *Report) ([]*sceneSlot, error) {
	start := o.clock().Now()
	descs, err := o.Catalog.Search(ctx, area, o.Settings.Window, o.Settings.Sensors)
	o.Metrics.ObserveStage("discovering", o.clock().Since(start))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	rep.Discovered = len(descs)
	o.Metrics.Discovered(len(descs))
	diagf("discovered %d scene(s)", len(descs))

	slots := make([]*sceneSlot, len(descs))
	for i, d := range descs {
		slots[i] = &sceneSlot{handle: scene.NewHandle(d, o.IO)}
		if err := d.Validate(); err != nil {
			slots[i].drop = &Dropped{SceneID: d.ID, Sensor: d.Sensor, Reason: DropLoad, Detail: err.Error()}
		}
	}
	return slots, nil
}

type sceneFunc func(ctx context.Context, slot *sceneSlot) error

// stage runs fn over every live slot with bounded concurrency and waits for
// all of them. fn returns an error only for cancellation, which aborts the
// stage; per-scene failures are recorded in the slot.
func (o *Orchestrator) stage(ctx context.Context, name string, slots []*sceneSlot, fn sceneFunc) error {
	start := o.clock().Now()
	defer func() { o.Metrics.ObserveStage(name, o.clock().Since(start)) }()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers())
	for _, slot := range slots {
		if !slot.alive() {
			continue
		}
		slot := slot
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, slot)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// A cancellation that raced the last worker still aborts the run.
	return ctx.Err()
}

// cancelled reports whether err should abort the run rather than drop the
// scene.
func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (o *Orchestrator) filterScene(area orb.Geometry) sceneFunc {
	s := o.Settings
	filter := s.QualityFilter()
	if area != nil {
		b := area.Bound()
		filter.AOI = &b
	}

	return func(ctx context.Context, slot *sceneSlot) error {
		h := slot.handle
		d := h.Descriptor()
		fail := func(err error) error {
			if cancelled(ctx, err) {
				return err
			}
			slot.drop = &Dropped{SceneID: d.ID, Sensor: d.Sensor, Reason: DropLoad, Detail: err.Error()}
			opsf("scene %s (%s) dropped: %v", d.ID, d.Sensor, err)
			return nil
		}

		data, err := h.LoadData(ctx)
		if err != nil {
			return fail(err)
		}
		if !s.CloudMaskEnabled {
			slot.masked = data
			tracef("scene %s: cloud mask disabled, using data as loaded", d.ID)
			return nil
		}

		frac, err := filter.CloudFraction(ctx, h)
		if err != nil {
			return fail(err)
		}
		slot.cloud = frac
		if !filter.Keep(frac) {
			detail := fmt.Sprintf("%.1f%% invalid exceeds threshold %.1f%%", frac, filter.MaxCloudPercent)
			slot.drop = &Dropped{SceneID: d.ID, Sensor: d.Sensor, Reason: DropQuality, Detail: detail}
			opsf("scene %s (%s) dropped by quality filter: %s", d.ID, d.Sensor, detail)
			return nil
		}

		masked, err := filter.ApplyPixelMask(ctx, h)
		if err != nil {
			return fail(err)
		}
		slot.masked = masked
		diagf("scene %s (%s): kept, %.1f%% invalid", d.ID, d.Sensor, frac)
		return nil
	}
}

func (o *Orchestrator) normalizeScene(norm *normalize.Normalizer) sceneFunc {
	return func(ctx context.Context, slot *sceneSlot) error {
		d := slot.handle.Descriptor()
		out, err := norm.Normalize(ctx, slot.handle, slot.masked)
		if err != nil {
			if cancelled(ctx, err) {
				return err
			}
			slot.drop = &Dropped{SceneID: d.ID, Sensor: d.Sensor, Reason: DropNormalize, Detail: err.Error()}
			opsf("scene %s (%s) dropped: %v", d.ID, d.Sensor, err)
			return nil
		}
		slot.normalized = out
		slot.masked = nil
		diagf("scene %s (%s): normalized onto target", d.ID, d.Sensor)
		return nil
	}
}

// collectDrops records the quality and load drops made so far.
func (o *Orchestrator) collectDrops(rep *Report, slots []*sceneSlot) {
	for _, slot := range slots {
		if slot.drop == nil {
			continue
		}
		switch slot.drop.Reason {
		case DropQuality:
			o.Metrics.Dropped(observability.DropQuality)
		case DropLoad:
			o.Metrics.Dropped(observability.DropLoad)
		default:
			continue
		}
		rep.drop(*slot.drop)
	}
}

// finish records the run and updates metrics. Failures here never change
// the run outcome.
func (o *Orchestrator) finish(ctx context.Context, rep *Report) {
	o.Metrics.Fused(rep.Fused)
	o.Metrics.RunFinished(rep.State.String(), rep.Finished, rep.Stats.ValidFraction)

	if o.Runs == nil {
		return
	}
	rec := runRecord(rep)
	// The run record is written even after cancellation.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.Runs.RecordRun(recCtx, rec); err != nil {
		opsf("run %s: failed to record provenance: %v", rep.RunID, err)
	}
}
