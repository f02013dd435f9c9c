package raster

import (
	"context"
	"errors"
	"math"
	"testing"
)

func targetOf(g *Grid, res float64) TargetGrid {
	minX, minY, maxX, maxY := g.Bounds()
	return TargetGrid{CRS: g.CRS, Resolution: res, MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

func TestResample_NearestIdentity(t *testing.T) {
	src := newTestGrid(4, 3, 30,
		280.1, 281.2, 282.3, 283.4,
		284.5, math.NaN(), 286.7, 287.8,
		288.9, 289.0, 290.1, 291.2,
	)

	out, err := Resample(context.Background(), src, targetOf(src, 30), KernelNearest)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if err := out.SameGrid(src); err != nil {
		t.Fatalf("output not on source grid: %v", err)
	}
	for i := range src.Data {
		want, got := src.Data[i], out.Data[i]
		if math.IsNaN(want) != math.IsNaN(got) || (!math.IsNaN(want) && want != got) {
			t.Errorf("pixel %d = %v, want %v", i, got, want)
		}
	}
}

func TestResample_BilinearIdentity(t *testing.T) {
	src := newTestGrid(3, 3, 30, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	out, err := Resample(context.Background(), src, targetOf(src, 30), KernelBilinear)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	for i := range src.Data {
		if math.Abs(out.Data[i]-src.Data[i]) > 1e-9 {
			t.Errorf("pixel %d = %v, want %v", i, out.Data[i], src.Data[i])
		}
	}
}

func TestResample_AverageDownsample(t *testing.T) {
	// 4x4 at 30 m -> 2x2 at 60 m; each output is the mean of a 2x2 block.
	src := newTestGrid(4, 4, 30,
		1, 3, 10, 10,
		5, 7, 10, 10,
		0, 0, 2, math.NaN(),
		0, 4, math.NaN(), math.NaN(),
	)
	out, err := Resample(context.Background(), src, targetOf(src, 60), KernelAverage)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if out.Width != 2 || out.Height != 2 {
		t.Fatalf("dims = %dx%d, want 2x2", out.Width, out.Height)
	}
	want := []float64{4, 10, 1, math.NaN()}
	for i, w := range want {
		got := out.Data[i]
		if math.IsNaN(w) {
			if !math.IsNaN(got) {
				t.Errorf("pixel %d = %v, want no-data (75%% of footprint masked)", i, got)
			}
			continue
		}
		if math.Abs(got-w) > 1e-9 {
			t.Errorf("pixel %d = %v, want %v", i, got, w)
		}
	}
}

func TestResample_AverageHalfMaskedKeepsValue(t *testing.T) {
	src := newTestGrid(2, 2, 30,
		10, math.NaN(),
		20, math.NaN(),
	)
	out, err := Resample(context.Background(), src, targetOf(src, 60), KernelAverage)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if got := out.Data[0]; math.Abs(got-15) > 1e-9 {
		t.Errorf("half-valid footprint = %v, want 15", got)
	}
}

func TestResample_BilinearMaskedNeighbourhoodIsNoData(t *testing.T) {
	src := newTestGrid(2, 2, 30,
		10, math.NaN(),
		math.NaN(), math.NaN(),
	)
	// Single target pixel centred on the shared corner of the four source cells.
	target := TargetGrid{CRS: src.CRS, Resolution: 30, MinX: 500015, MinY: 3999955, MaxX: 500045, MaxY: 3999985}
	out, err := Resample(context.Background(), src, target, KernelBilinear)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if !math.IsNaN(out.Data[0]) {
		t.Errorf("pixel dominated by no-data = %v, want NaN", out.Data[0])
	}
}

func TestResample_CubicFallsBackNearEdges(t *testing.T) {
	src := newTestGrid(2, 2, 30, 1, 2, 3, 4)
	out, err := Resample(context.Background(), src, targetOf(src, 30), KernelCubic)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	for i := range src.Data {
		if math.Abs(out.Data[i]-src.Data[i]) > 1e-9 {
			t.Errorf("pixel %d = %v, want %v", i, out.Data[i], src.Data[i])
		}
	}
}

func TestResample_CubicInterior(t *testing.T) {
	// A linear ramp is reproduced exactly by Keys cubic convolution.
	vals := make([]float64, 36)
	for r := 0; r < 6; r++ {
		for c := 0; c < 6; c++ {
			vals[r*6+c] = float64(c) * 2
		}
	}
	src := newTestGrid(6, 6, 30, vals...)
	out, err := Resample(context.Background(), src, targetOf(src, 30), KernelCubic)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if got := out.At(3, 3); math.Abs(got-6) > 1e-9 {
		t.Errorf("interior cubic = %v, want 6", got)
	}
}

func TestResample_OutsideFootprintIsNoData(t *testing.T) {
	src := newTestGrid(2, 2, 30, 1, 2, 3, 4)
	target := TargetGrid{CRS: src.CRS, Resolution: 30, MinX: 500000, MinY: 3999940, MaxX: 500120, MaxY: 4000000}
	out, err := Resample(context.Background(), src, target, KernelNearest)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if !math.IsNaN(out.At(3, 0)) {
		t.Errorf("pixel outside source = %v, want NaN", out.At(3, 0))
	}
	if out.At(1, 1) != 4 {
		t.Errorf("pixel inside source = %v, want 4", out.At(1, 1))
	}
}

func TestResample_Errors(t *testing.T) {
	src := newTestGrid(2, 2, 30, 1, 2, 3, 4)

	rotated := src.Clone()
	rotated.Transform[2] = 0.5
	if _, err := Resample(context.Background(), rotated, targetOf(src, 30), KernelNearest); !errors.Is(err, ErrRotatedTransform) {
		t.Errorf("rotated err = %v", err)
	}

	noCRS := src.Clone()
	noCRS.CRS = ""
	if _, err := Resample(context.Background(), noCRS, targetOf(src, 30), KernelNearest); !errors.Is(err, ErrUnknownCRS) {
		t.Errorf("missing CRS err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Resample(ctx, src, targetOf(src, 30), KernelNearest); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v", err)
	}
}
