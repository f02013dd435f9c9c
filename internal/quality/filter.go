package quality

import (
	"context"
	"errors"
	"math"

	"github.com/paulmach/orb"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
)

// Filter computes cloud fractions and pixel masks for scene handles.
// A Filter is read-only after construction and safe for concurrent use.
type Filter struct {
	// MaxCloudPercent is the keep threshold in [0, 100].
	MaxCloudPercent float64
	// Decoders maps a sensor class to its flag semantics. Classes without
	// an entry use Default, and NonZero when Default is nil.
	Decoders map[scene.SensorClass]FlagDecoder
	Default  FlagDecoder
	// AOI restricts the cloud fraction to the area of interest's bounding
	// window (WGS84). Nil means whole raster.
	AOI *orb.Bound
}

// NewFilter returns a Filter with the NonZero decoder for every sensor.
func NewFilter(maxCloudPercent float64) *Filter {
	return &Filter{MaxCloudPercent: maxCloudPercent}
}

// Decoder returns the flag decoder used for sensor.
func (f *Filter) Decoder(sensor scene.SensorClass) FlagDecoder {
	if d, ok := f.Decoders[sensor]; ok && d != nil {
		return d
	}
	if f.Default != nil {
		return f.Default
	}
	return NonZero{}
}

// Keep reports whether a scene with the given cloud fraction is kept.
func (f *Filter) Keep(fraction float64) bool {
	return fraction <= f.MaxCloudPercent
}

// loadQuality returns the quality band, treating an unusable band as absent.
func (f *Filter) loadQuality(ctx context.Context, h *scene.Handle) (*raster.Grid, error) {
	q, err := h.LoadQuality(ctx)
	if err == nil {
		return q, nil
	}
	if errors.Is(err, scene.ErrQualityUnavailable) && ctx.Err() == nil {
		opsf("scene %s: %v; treating scene as fully valid", h.ID(), err)
		return nil, nil
	}
	return nil, err
}

// CloudFraction returns the percentage in [0, 100] of quality pixels flagged
// invalid. A scene without a usable quality band has fraction 0.
func (f *Filter) CloudFraction(ctx context.Context, h *scene.Handle) (float64, error) {
	q, err := f.loadQuality(ctx, h)
	if err != nil {
		return 0, err
	}
	if q == nil {
		tracef("scene %s: no quality band, fraction 0", h.ID())
		return 0, nil
	}

	c0, r0, c1, r1 := 0, 0, q.Width, q.Height
	if f.AOI != nil {
		if wc0, wr0, wc1, wr1, ok := aoiWindow(q, *f.AOI); ok {
			c0, r0, c1, r1 = wc0, wr0, wc1, wr1
		} else {
			diagf("scene %s: AOI window unusable, using whole raster", h.ID())
		}
	}

	dec := f.Decoder(h.Descriptor().Sensor)
	var flagged, total int
	for row := r0; row < r1; row++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for col := c0; col < c1; col++ {
			total++
			if dec.Invalid(q.At(col, row)) {
				flagged++
			}
		}
	}
	fraction := 100 * float64(flagged) / float64(total)
	tracef("scene %s: %d/%d pixels flagged (%.2f%%)", h.ID(), flagged, total, fraction)
	return fraction, nil
}

// aoiWindow converts the AOI bounds to a clipped pixel window of q.
// ok is false when the transform fails or the window is empty.
func aoiWindow(q *raster.Grid, aoi orb.Bound) (c0, r0, c1, r1 int, ok bool) {
	if !q.Transform.NorthUp() {
		return 0, 0, 0, 0, false
	}
	minX, minY, maxX, maxY, err := raster.TransformBounds(raster.WGS84, q.CRS, aoi.Min[0], aoi.Min[1], aoi.Max[0], aoi.Max[1])
	if err != nil {
		return 0, 0, 0, 0, false
	}
	ca, ra := q.Transform.Fractional(minX, maxY)
	cb, rb := q.Transform.Fractional(maxX, minY)
	c0 = clamp(int(math.Floor(math.Min(ca, cb))), 0, q.Width)
	c1 = clamp(int(math.Ceil(math.Max(ca, cb))), 0, q.Width)
	r0 = clamp(int(math.Floor(math.Min(ra, rb))), 0, q.Height)
	r1 = clamp(int(math.Ceil(math.Max(ra, rb))), 0, q.Height)
	if c1 <= c0 || r1 <= r0 {
		return 0, 0, 0, 0, false
	}
	return c0, r0, c1, r1, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ApplyPixelMask returns a copy of the data band with every flagged pixel
// set to no-data. Without a usable quality band the copy is unmasked.
func (f *Filter) ApplyPixelMask(ctx context.Context, h *scene.Handle) (*raster.Grid, error) {
	data, err := h.LoadData(ctx)
	if err != nil {
		return nil, err
	}
	q, err := f.loadQuality(ctx, h)
	if err != nil {
		return nil, err
	}
	out := data.Clone()
	if q == nil {
		return out, nil
	}
	dec := f.Decoder(h.Descriptor().Sensor)
	masked := 0
	for i, v := range q.Data {
		if dec.Invalid(v) && !math.IsNaN(out.Data[i]) {
			out.Data[i] = math.NaN()
			masked++
		}
	}
	tracef("scene %s: masked %d pixels", h.ID(), masked)
	return out, nil
}
