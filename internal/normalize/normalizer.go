package normalize

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
)

// ErrNormalization wraps every per-scene normalization failure.
// Recoverable: the scene is dropped from the run.
var ErrNormalization = errors.New("normalization failed")

// metresPerDegree approximates the length of one degree at the equator and
// is used only to classify geographic grids by resolution.
const metresPerDegree = 111320.0

// Normalizer conforms scene grids onto Target. It is read-only after
// construction and safe for concurrent use when its hooks are.
type Normalizer struct {
	Reprojector raster.Reprojector
	Target      raster.TargetGrid
	// Kernel is the configured resample_kernel; each role decides whether
	// it honours it.
	Kernel raster.Kernel
	// EnhancementModelID enables the enhancement path for coarse sensors
	// when non-empty and Enhancer is set.
	EnhancementModelID string
	Enhancer           EnhancementHook
	SharpenEnabled     bool
	Sharpener          SharpeningHook
}

// Plan resolves the path a scene of class sensor at native metres takes.
func (n *Normalizer) Plan(sensor scene.SensorClass, native float64) Plan {
	pol := PolicyFor(sensor)
	role := effectiveRole(pol, native, n.Target.Resolution)
	p := Plan{Role: role, Sharpen: n.SharpenEnabled && pol.Sharpenable}
	switch role {
	case RoleReference:
		p.Kernel = referenceKernel(n.Kernel)
	case RoleCoarse:
		p.Kernel = raster.KernelNearest
		p.Enhance = pol.Enhanceable && n.EnhancementModelID != "" && n.Enhancer != nil
	default:
		p.Kernel = upscaleKernel(n.Kernel)
	}
	return p
}

// NativeResolution returns the scene's native resolution in metres, taken
// from the descriptor or, when absent, from the grid.
func NativeResolution(desc scene.Descriptor, g *raster.Grid) float64 {
	if desc.NativeResolution > 0 {
		return desc.NativeResolution
	}
	rx, ry := g.Resolution()
	res := math.Max(rx, ry)
	if raster.CanonicalCRS(g.CRS) == raster.WGS84 {
		res *= metresPerDegree
	}
	return res
}

// Normalize places g, the possibly masked data band of h, onto the target
// grid. Failures wrap ErrNormalization.
func (n *Normalizer) Normalize(ctx context.Context, h *scene.Handle, g *raster.Grid) (*raster.Grid, error) {
	desc := h.Descriptor()
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNormalization, desc.ID, err)
	}
	plan := n.Plan(desc.Sensor, NativeResolution(desc, g))
	tracef("scene %s (%s): role=%s kernel=%s enhance=%v sharpen=%v",
		desc.ID, desc.Sensor, plan.Role, plan.Kernel, plan.Enhance, plan.Sharpen)

	work := g
	if plan.Sharpen {
		sharpened, err := n.sharpen(ctx, h, work)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: sharpen: %w", ErrNormalization, desc.ID, err)
		}
		work = sharpened
	}

	if plan.Enhance {
		enhanced, err := n.Enhancer.Enhance(ctx, work, n.Target.Resolution, n.EnhancementModelID)
		if err == nil {
			err = enhanced.Validate()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: enhance %q: %w", ErrNormalization, desc.ID, n.EnhancementModelID, err)
		}
		work = enhanced
	} else if plan.Role == RoleCoarse && n.EnhancementModelID != "" {
		diagf("scene %s: enhancement model %q configured but no hook installed; using nearest", desc.ID, n.EnhancementModelID)
	}

	out, err := n.Reprojector.Reproject(ctx, work, n.Target, plan.Kernel)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reproject: %w", ErrNormalization, desc.ID, err)
	}
	if err := out.SameGrid(n.Target.NewGridShape()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNormalization, desc.ID, err)
	}
	return out, nil
}

// sharpen runs the sharpening hook when one is installed and the scene has
// a companion band. Missing hook or band leaves data unsharpened.
func (n *Normalizer) sharpen(ctx context.Context, h *scene.Handle, data *raster.Grid) (*raster.Grid, error) {
	if n.Sharpener == nil {
		diagf("scene %s: sharpening enabled but no hook installed; using unsharpened path", h.ID())
		return data, nil
	}
	pan, err := h.LoadPan(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		opsf("scene %s: %v; using unsharpened path", h.ID(), err)
		return data, nil
	}
	if pan == nil {
		diagf("scene %s: no companion band; using unsharpened path", h.ID())
		return data, nil
	}
	out, err := n.Sharpener.Sharpen(ctx, data, pan)
	if err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
