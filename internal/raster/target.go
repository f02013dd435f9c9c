package raster

import (
	"errors"
	"fmt"
	"math"
)

// TargetGrid is the common CRS, resolution and pixel alignment every scene is
// normalized onto before fusion. Bounds are snapped outward to multiples of
// the resolution so independently built targets over the same AOI align.
type TargetGrid struct {
	CRS        string
	Resolution float64
	MinX       float64
	MinY       float64
	MaxX       float64
	MaxY       float64
}

// NewTargetGrid snaps the extent outward to the resolution lattice.
func NewTargetGrid(crs string, resolution, minX, minY, maxX, maxY float64) (TargetGrid, error) {
	if crs == "" {
		return TargetGrid{}, errors.New("target grid needs a CRS")
	}
	if !(resolution > 0) || math.IsInf(resolution, 0) {
		return TargetGrid{}, fmt.Errorf("target resolution must be positive, got %v", resolution)
	}
	if !(maxX > minX) || !(maxY > minY) {
		return TargetGrid{}, fmt.Errorf("empty target extent [%v,%v]x[%v,%v]", minX, maxX, minY, maxY)
	}
	return TargetGrid{
		CRS:        crs,
		Resolution: resolution,
		MinX:       math.Floor(minX/resolution) * resolution,
		MinY:       math.Floor(minY/resolution) * resolution,
		MaxX:       math.Ceil(maxX/resolution) * resolution,
		MaxY:       math.Ceil(maxY/resolution) * resolution,
	}, nil
}

// Width returns the number of columns.
func (t TargetGrid) Width() int {
	return int(math.Round((t.MaxX - t.MinX) / t.Resolution))
}

// Height returns the number of rows.
func (t TargetGrid) Height() int {
	return int(math.Round((t.MaxY - t.MinY) / t.Resolution))
}

// Transform returns the north-up geotransform of the target.
func (t TargetGrid) Transform() GeoTransform {
	return GeoTransform{t.MinX, t.Resolution, 0, t.MaxY, 0, -t.Resolution}
}

// NewGrid allocates an all-no-data grid on the target.
func (t TargetGrid) NewGrid() *Grid {
	return NewGrid(t.Width(), t.Height(), t.Transform(), t.CRS)
}

// Matches reports whether g already sits on this target.
func (t TargetGrid) Matches(g *Grid) bool {
	return t.NewGridShape().SameGrid(g) == nil
}

// NewGridShape returns a grid header for comparisons without allocating data.
func (t TargetGrid) NewGridShape() *Grid {
	return &Grid{Width: t.Width(), Height: t.Height(), Transform: t.Transform(), CRS: t.CRS}
}

// String renders the target for logs.
func (t TargetGrid) String() string {
	return fmt.Sprintf("%s @ %gm [%g,%g]-[%g,%g] (%dx%d)",
		t.CRS, t.Resolution, t.MinX, t.MinY, t.MaxX, t.MaxY, t.Width(), t.Height())
}
