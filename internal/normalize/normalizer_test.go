package normalize

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
)

// recordingReprojector delegates to LocalIO and remembers the kernels used.
type recordingReprojector struct {
	mu      sync.Mutex
	kernels []raster.Kernel
	inputs  []*raster.Grid
	err     error
}

func (r *recordingReprojector) Reproject(ctx context.Context, g *raster.Grid, target raster.TargetGrid, k raster.Kernel) (*raster.Grid, error) {
	r.mu.Lock()
	r.kernels = append(r.kernels, k)
	r.inputs = append(r.inputs, g)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return (&raster.LocalIO{FS: fsutil.NewMemoryFileSystem()}).Reproject(ctx, g, target, k)
}

type gridOpener map[string]*raster.Grid

func (o gridOpener) Open(_ context.Context, locator string) (*raster.Grid, error) {
	if g, ok := o[locator]; ok {
		return g, nil
	}
	return nil, errors.New("missing " + locator)
}

const crs = "EPSG:32612"

func utmGrid(w, h int, res float64) *raster.Grid {
	g := raster.NewGrid(w, h, raster.GeoTransform{500000, res, 0, 4000200, 0, -res}, crs)
	for i := range g.Data {
		g.Data[i] = 280 + float64(i%7)
	}
	return g
}

func target30() raster.TargetGrid {
	return raster.TargetGrid{CRS: crs, Resolution: 30, MinX: 500000, MinY: 4000020, MaxX: 500180, MaxY: 4000200}
}

func newHandle(id string, sensor scene.SensorClass, native float64, op gridOpener, pan string) *scene.Handle {
	return scene.NewHandle(scene.Descriptor{
		ID:               id,
		Sensor:           sensor,
		DataLocator:      id,
		PanLocator:       pan,
		Acquired:         time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		NativeResolution: native,
		NativeCRS:        crs,
	}, op)
}

func TestNormalize_ReferenceNearestIsIdentity(t *testing.T) {
	src := utmGrid(6, 6, 30)
	src.Data[7] = math.NaN()
	rp := &recordingReprojector{}
	n := &Normalizer{Reprojector: rp, Target: target30(), Kernel: raster.KernelNearest}

	out, err := n.Normalize(context.Background(), newHandle("L", scene.LANDSAT, 30, gridOpener{}, ""), src)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !n.Target.Matches(out) {
		t.Fatal("output not on target grid")
	}
	for i := range src.Data {
		a, b := src.Data[i], out.Data[i]
		if math.IsNaN(a) != math.IsNaN(b) || (!math.IsNaN(a) && a != b) {
			t.Errorf("pixel %d = %v, want %v", i, b, a)
		}
	}

	// Off-target input goes through the resampler with the same kernel.
	shifted := utmGrid(6, 6, 30)
	shifted.Transform[0] -= 30
	if _, err := n.Normalize(context.Background(), newHandle("L2", scene.LANDSAT, 30, gridOpener{}, ""), shifted); err != nil {
		t.Fatalf("Normalize shifted: %v", err)
	}
	if rp.kernels[1] != raster.KernelNearest {
		t.Errorf("kernel = %v, want nearest", rp.kernels[1])
	}
}

func TestNormalize_UpscaleAveragesAndPreservesNoData(t *testing.T) {
	src := raster.NewGrid(2, 2, raster.GeoTransform{500000, 90, 0, 4000200, 0, -90}, crs)
	src.Data = []float64{300, math.NaN(), 310, 320}
	rp := &recordingReprojector{}
	n := &Normalizer{Reprojector: rp, Target: target30(), Kernel: raster.KernelNearest}

	out, err := n.Normalize(context.Background(), newHandle("E", scene.ECOSTRESS, 90, gridOpener{}, ""), src)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rp.kernels[0] != raster.KernelAverage {
		t.Errorf("kernel = %v, want average", rp.kernels[0])
	}
	// Target pixels inside the masked 90 m source cell stay no-data.
	if v := out.At(4, 0); !math.IsNaN(v) {
		t.Errorf("pixel under masked source = %v, want NaN", v)
	}
	if v := out.At(0, 0); math.Abs(v-300) > 1e-9 {
		t.Errorf("pixel under valid source = %v, want 300", v)
	}
}

func TestNormalize_CoarseEnhancementConformed(t *testing.T) {
	src := utmGrid(1, 1, 1000)
	var gotModel string
	var gotRes float64
	hook := EnhancementFunc(func(_ context.Context, native *raster.Grid, res float64, model string) (*raster.Grid, error) {
		gotModel, gotRes = model, res
		// Hooks may return a grid that is neither on the target CRS nor
		// aligned with it.
		g := raster.NewGrid(4, 4, raster.GeoTransform{499990, 60, 0, 4000210, 0, -60}, crs)
		for i := range g.Data {
			g.Data[i] = 295
		}
		return g, nil
	})
	n := &Normalizer{
		Reprojector:        &recordingReprojector{},
		Target:             target30(),
		EnhancementModelID: "srcnn-v1",
		Enhancer:           hook,
	}

	out, err := n.Normalize(context.Background(), newHandle("M", scene.MODIS, 1000, gridOpener{}, ""), src)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if gotModel != "srcnn-v1" || gotRes != 30 {
		t.Errorf("hook called with model=%q res=%v", gotModel, gotRes)
	}
	if !n.Target.Matches(out) {
		t.Fatal("hook output not conformed onto target")
	}
	if out.At(0, 0) != 295 {
		t.Errorf("pixel = %v, want 295", out.At(0, 0))
	}
}

func TestNormalize_CoarseWithoutHookUsesNearest(t *testing.T) {
	rp := &recordingReprojector{}
	n := &Normalizer{Reprojector: rp, Target: target30(), Kernel: raster.KernelCubic, EnhancementModelID: "srcnn-v1"}
	out, err := n.Normalize(context.Background(), newHandle("S", scene.SLSTR, 1000, gridOpener{}, ""), utmGrid(1, 1, 1000))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rp.kernels[0] != raster.KernelNearest {
		t.Errorf("kernel = %v, want nearest", rp.kernels[0])
	}
	if out.ValidCount() != out.Width*out.Height {
		t.Errorf("coarse pixel should cover the whole target, valid=%d", out.ValidCount())
	}
}

func TestNormalize_Sharpening(t *testing.T) {
	src := utmGrid(6, 6, 30)
	pan := utmGrid(12, 12, 15)
	op := gridOpener{"pan": pan}

	t.Run("hook receives companion band", func(t *testing.T) {
		var sawPan *raster.Grid
		rp := &recordingReprojector{}
		n := &Normalizer{
			Reprojector:    rp,
			Target:         target30(),
			SharpenEnabled: true,
			Sharpener: SharpeningFunc(func(_ context.Context, data, p *raster.Grid) (*raster.Grid, error) {
				sawPan = p
				out := data.Clone()
				for i := range out.Data {
					out.Data[i] += 1
				}
				return out, nil
			}),
		}
		out, err := n.Normalize(context.Background(), newHandle("L", scene.LANDSAT, 30, op, "pan"), src)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if sawPan != pan {
			t.Error("sharpening hook did not receive the companion band")
		}
		if out.Data[0] != src.Data[0]+1 {
			t.Errorf("pixel = %v, want sharpened %v", out.Data[0], src.Data[0]+1)
		}
	})

	t.Run("missing hook is not an error", func(t *testing.T) {
		n := &Normalizer{Reprojector: &recordingReprojector{}, Target: target30(), SharpenEnabled: true}
		out, err := n.Normalize(context.Background(), newHandle("L", scene.LANDSAT, 30, op, "pan"), src)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if out.Data[0] != src.Data[0] {
			t.Errorf("pixel = %v, want unsharpened %v", out.Data[0], src.Data[0])
		}
	})

	t.Run("missing companion band is not an error", func(t *testing.T) {
		called := false
		n := &Normalizer{
			Reprojector:    &recordingReprojector{},
			Target:         target30(),
			SharpenEnabled: true,
			Sharpener: SharpeningFunc(func(_ context.Context, data, _ *raster.Grid) (*raster.Grid, error) {
				called = true
				return data, nil
			}),
		}
		if _, err := n.Normalize(context.Background(), newHandle("L", scene.LANDSAT, 30, op, "gone"), src); err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if called {
			t.Error("hook called without a companion band")
		}
	})

	t.Run("hook failure drops scene", func(t *testing.T) {
		n := &Normalizer{
			Reprojector:    &recordingReprojector{},
			Target:         target30(),
			SharpenEnabled: true,
			Sharpener: SharpeningFunc(func(context.Context, *raster.Grid, *raster.Grid) (*raster.Grid, error) {
				return nil, errors.New("model crashed")
			}),
		}
		_, err := n.Normalize(context.Background(), newHandle("L", scene.LANDSAT, 30, op, "pan"), src)
		if !errors.Is(err, ErrNormalization) {
			t.Errorf("err = %v, want ErrNormalization", err)
		}
	})
}

func TestNormalize_Failures(t *testing.T) {
	src := utmGrid(6, 6, 30)

	rp := &recordingReprojector{err: errors.New("proj failure")}
	n := &Normalizer{Reprojector: rp, Target: target30()}
	if _, err := n.Normalize(context.Background(), newHandle("L", scene.LANDSAT, 30, gridOpener{}, ""), src); !errors.Is(err, ErrNormalization) {
		t.Errorf("reproject failure err = %v", err)
	}

	bad := &raster.Grid{Width: 2, Height: 2}
	n = &Normalizer{Reprojector: &recordingReprojector{}, Target: target30()}
	if _, err := n.Normalize(context.Background(), newHandle("L", scene.LANDSAT, 30, gridOpener{}, ""), bad); !errors.Is(err, ErrNormalization) {
		t.Errorf("invalid grid err = %v", err)
	}

	n = &Normalizer{
		Reprojector:        &recordingReprojector{},
		Target:             target30(),
		EnhancementModelID: "m",
		Enhancer: EnhancementFunc(func(context.Context, *raster.Grid, float64, string) (*raster.Grid, error) {
			return &raster.Grid{}, nil
		}),
	}
	if _, err := n.Normalize(context.Background(), newHandle("M", scene.MODIS, 1000, gridOpener{}, ""), utmGrid(1, 1, 1000)); !errors.Is(err, ErrNormalization) {
		t.Errorf("invalid hook output err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n = &Normalizer{Reprojector: &recordingReprojector{}, Target: target30()}
	shifted := utmGrid(6, 6, 30)
	shifted.Transform[0] += 15
	_, err := n.Normalize(ctx, newHandle("L", scene.LANDSAT, 30, gridOpener{}, ""), shifted)
	if !errors.Is(err, ErrNormalization) || !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v", err)
	}
}

func TestNativeResolution(t *testing.T) {
	g := utmGrid(1, 1, 70)
	if got := NativeResolution(scene.Descriptor{NativeResolution: 30}, g); got != 30 {
		t.Errorf("descriptor resolution = %v, want 30", got)
	}
	if got := NativeResolution(scene.Descriptor{}, g); got != 70 {
		t.Errorf("grid resolution = %v, want 70", got)
	}
	geo := raster.NewGrid(1, 1, raster.GeoTransform{0, 0.01, 0, 0, 0, -0.01}, raster.WGS84)
	if got := NativeResolution(scene.Descriptor{}, geo); math.Abs(got-1113.2) > 1e-6 {
		t.Errorf("geographic resolution = %v, want ~1113", got)
	}
}
