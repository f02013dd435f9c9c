// Package testutil provides shared test fixtures: grids on a known UTM
// lattice and helpers that stage scenes on an in-memory filesystem.
package testutil

import (
	"context"
	"testing"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
)

// UTM12 is the projected CRS used by fixtures.
const UTM12 = "EPSG:32612"

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Grid returns a w x h north-up UTM grid with its top-left corner at
// (originX, originY), filled by fill(col, row). A nil fill leaves no-data.
func Grid(w, h int, res, originX, originY float64, fill func(col, row int) float64) *raster.Grid {
	g := raster.NewGrid(w, h, raster.GeoTransform{originX, res, 0, originY, 0, -res}, UTM12)
	if fill == nil {
		return g
	}
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			g.Set(col, row, fill(col, row))
		}
	}
	return g
}

// Constant returns a fill function yielding v everywhere.
func Constant(v float64) func(int, int) float64 {
	return func(int, int) float64 { return v }
}

// Ramp returns a fill function yielding base + col + 10*row.
func Ramp(base float64) func(int, int) float64 {
	return func(col, row int) float64 { return base + float64(col) + 10*float64(row) }
}

// FlagFirst returns a quality grid shaped like like whose first n pixels in
// row-major order are flagged (1) and the rest clear (0).
func FlagFirst(like *raster.Grid, n int) *raster.Grid {
	q := like.Clone()
	for i := range q.Data {
		if i < n {
			q.Data[i] = 1
		} else {
			q.Data[i] = 0
		}
	}
	return q
}

// WriteGrid stores g as an ASCII grid with a CRS sidecar at path on fs.
func WriteGrid(t testing.TB, fs fsutil.FileSystem, path string, g *raster.Grid) {
	t.Helper()
	io := &raster.LocalIO{FS: fs}
	err := io.Write(context.Background(), g, path, raster.WriteOptions{WriteSidecar: true})
	if err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
