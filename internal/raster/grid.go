package raster

import (
	"errors"
	"fmt"
	"math"
)

// ErrGridMismatch is returned when two grids that must share a pixel grid do not.
var ErrGridMismatch = errors.New("grids are not on the same pixel grid")

// ErrRotatedTransform is returned for grids whose transform has rotation terms.
var ErrRotatedTransform = errors.New("rotated geotransforms are not supported")

// GeoTransform is an affine pixel-to-world transform in GDAL order:
// origin X, pixel width, row rotation, origin Y, column rotation, pixel height.
// Pixel height is negative for north-up grids.
type GeoTransform [6]float64

// NorthUp reports whether the transform has no rotation terms.
func (t GeoTransform) NorthUp() bool {
	return t[2] == 0 && t[4] == 0
}

// PixelCenter returns the world coordinate of the centre of pixel (col, row).
func (t GeoTransform) PixelCenter(col, row int) (x, y float64) {
	x = t[0] + (float64(col)+0.5)*t[1]
	y = t[3] + (float64(row)+0.5)*t[5]
	return x, y
}

// Fractional maps a world coordinate to continuous pixel space, where pixel
// i covers [i, i+1) in both axes. Only valid for north-up transforms.
func (t GeoTransform) Fractional(x, y float64) (col, row float64) {
	return (x - t[0]) / t[1], (y - t[3]) / t[5]
}

// Grid is a single-band raster in row-major order with an affine transform
// and a coordinate reference system. NaN marks no-data.
type Grid struct {
	Width     int
	Height    int
	Transform GeoTransform
	CRS       string
	Data      []float64
}

// NewGrid allocates a grid filled with NaN.
func NewGrid(width, height int, transform GeoTransform, crs string) *Grid {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Grid{Width: width, Height: height, Transform: transform, CRS: crs, Data: data}
}

// Validate checks that the data length matches the dimensions.
func (g *Grid) Validate() error {
	if g == nil {
		return errors.New("nil grid")
	}
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid grid dimensions %dx%d", g.Width, g.Height)
	}
	if len(g.Data) != g.Width*g.Height {
		return fmt.Errorf("grid data length %d does not match %dx%d", len(g.Data), g.Width, g.Height)
	}
	if g.Transform[1] == 0 || g.Transform[5] == 0 {
		return errors.New("grid transform has zero pixel size")
	}
	return nil
}

// Index returns the offset of (col, row) in Data.
func (g *Grid) Index(col, row int) int {
	return row*g.Width + col
}

// At returns the value at (col, row).
func (g *Grid) At(col, row int) float64 {
	return g.Data[row*g.Width+col]
}

// Set stores v at (col, row).
func (g *Grid) Set(col, row int, v float64) {
	g.Data[row*g.Width+col] = v
}

// InBounds reports whether (col, row) addresses a pixel of the grid.
func (g *Grid) InBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.Width && row < g.Height
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := *g
	c.Data = make([]float64, len(g.Data))
	copy(c.Data, g.Data)
	return &c
}

// Resolution returns the absolute pixel width and height.
func (g *Grid) Resolution() (float64, float64) {
	return math.Abs(g.Transform[1]), math.Abs(g.Transform[5])
}

// Bounds returns the world extent as minX, minY, maxX, maxY.
func (g *Grid) Bounds() (minX, minY, maxX, maxY float64) {
	x0 := g.Transform[0]
	x1 := g.Transform[0] + float64(g.Width)*g.Transform[1]
	y0 := g.Transform[3]
	y1 := g.Transform[3] + float64(g.Height)*g.Transform[5]
	return math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)
}

// ValidCount returns the number of pixels that are not no-data.
func (g *Grid) ValidCount() int {
	n := 0
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// IsNoData reports whether v is the in-memory no-data sentinel.
func IsNoData(v float64) bool {
	return math.IsNaN(v)
}

// SameGrid returns nil when other shares this grid's CRS, dimensions and
// pixel alignment, and an error wrapping ErrGridMismatch otherwise.
func (g *Grid) SameGrid(other *Grid) error {
	if g.Width != other.Width || g.Height != other.Height {
		return fmt.Errorf("%w: size %dx%d vs %dx%d", ErrGridMismatch, g.Width, g.Height, other.Width, other.Height)
	}
	if CanonicalCRS(g.CRS) != CanonicalCRS(other.CRS) {
		return fmt.Errorf("%w: crs %q vs %q", ErrGridMismatch, g.CRS, other.CRS)
	}
	for i := range g.Transform {
		if !nearlyEqual(g.Transform[i], other.Transform[i]) {
			return fmt.Errorf("%w: transform %v vs %v", ErrGridMismatch, g.Transform, other.Transform)
		}
	}
	return nil
}

func nearlyEqual(a, b float64) bool {
	const eps = 1e-9
	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}
	return diff <= eps*math.Max(math.Abs(a), math.Abs(b))
}
