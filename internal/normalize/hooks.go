package normalize

import (
	"context"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
)

// EnhancementHook maps a coarse native grid toward the target resolution,
// for example with a super-resolution model. The result may be in any CRS
// and resolution; the normalizer conforms it onto the target grid.
type EnhancementHook interface {
	Enhance(ctx context.Context, native *raster.Grid, targetResolution float64, modelID string) (*raster.Grid, error)
}

// EnhancementFunc adapts a function to EnhancementHook.
type EnhancementFunc func(ctx context.Context, native *raster.Grid, targetResolution float64, modelID string) (*raster.Grid, error)

// Enhance implements EnhancementHook.
func (f EnhancementFunc) Enhance(ctx context.Context, native *raster.Grid, targetResolution float64, modelID string) (*raster.Grid, error) {
	return f(ctx, native, targetResolution, modelID)
}

// SharpeningHook sharpens a data grid toward a companion high-resolution
// band, for example pansharpening. pan may be on a finer grid than data.
type SharpeningHook interface {
	Sharpen(ctx context.Context, data, pan *raster.Grid) (*raster.Grid, error)
}

// SharpeningFunc adapts a function to SharpeningHook.
type SharpeningFunc func(ctx context.Context, data, pan *raster.Grid) (*raster.Grid, error)

// Sharpen implements SharpeningHook.
func (f SharpeningFunc) Sharpen(ctx context.Context, data, pan *raster.Grid) (*raster.Grid, error) {
	return f(ctx, data, pan)
}

// Passthrough is the no-op hook: it returns its input unchanged, so the
// scene continues down the plain reprojection path.
type Passthrough struct{}

// Enhance implements EnhancementHook.
func (Passthrough) Enhance(_ context.Context, native *raster.Grid, _ float64, _ string) (*raster.Grid, error) {
	return native, nil
}

// Sharpen implements SharpeningHook.
func (Passthrough) Sharpen(_ context.Context, data, _ *raster.Grid) (*raster.Grid, error) {
	return data, nil
}
