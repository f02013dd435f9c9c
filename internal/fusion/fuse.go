package fusion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
)

var (
	// ErrEmptyInput is returned when there is nothing to fuse.
	ErrEmptyInput = errors.New("no grids to fuse")
	// ErrInvalidWeights is returned for negative, non-finite or all-zero
	// weights under the weighted policy.
	ErrInvalidWeights = errors.New("invalid fusion weights")
	// ErrUnknownPolicy is returned for an unrecognised policy name.
	ErrUnknownPolicy = errors.New("unknown fusion policy")
	// ErrGridMismatch is returned when inputs are not on one pixel grid.
	ErrGridMismatch = raster.ErrGridMismatch
)

// Layer is one fusion input.
type Layer struct {
	SceneID  string
	Grid     *raster.Grid
	Weight   float64
	Acquired time.Time
}

// Options parameterise Fuse.
type Options struct {
	Policy Policy
	// Reference is the instant ages are measured from for PolicyRecency,
	// normally the end of the query window. Zero means the newest input.
	Reference time.Time
	// Tolerance is the maximum age accepted by PolicyRecency.
	Tolerance time.Duration
	// Workers bounds the goroutines used for the reduction; 0 means
	// GOMAXPROCS.
	Workers int
}

// Weights returns the layer weights in input order.
func Weights(layers []Layer) []float64 {
	w := make([]float64, len(layers))
	for i, l := range layers {
		w[i] = l.Weight
	}
	return w
}

// ValidateWeights checks a weight vector for the weighted policy.
func ValidateWeights(w []float64) error {
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: weight %d is %v", ErrInvalidWeights, i, v)
		}
	}
	if len(w) == 0 || floats.Sum(w) == 0 {
		return fmt.Errorf("%w: all weights are zero", ErrInvalidWeights)
	}
	return nil
}

// Fuse combines layers into one grid on their shared pixel grid.
func Fuse(ctx context.Context, layers []Layer, opts Options) (*raster.Grid, error) {
	if len(layers) == 0 {
		return nil, ErrEmptyInput
	}
	ref := layers[0].Grid
	for i, l := range layers {
		if err := l.Grid.Validate(); err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, l.SceneID, err)
		}
		if err := ref.SameGrid(l.Grid); err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, l.SceneID, err)
		}
	}

	var reduce pixelReducer
	switch opts.Policy {
	case PolicyMean, "":
		reduce = newMeanReducer(layers)
	case PolicyWeightedMean:
		if err := ValidateWeights(Weights(layers)); err != nil {
			return nil, err
		}
		reduce = newWeightedReducer(layers)
	case PolicyRecency:
		if opts.Tolerance < 0 {
			return nil, fmt.Errorf("recency tolerance must not be negative, got %s", opts.Tolerance)
		}
		reduce = newRecencyReducer(layers, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, opts.Policy)
	}

	out := raster.NewGrid(ref.Width, ref.Height, ref.Transform, ref.CRS)
	if err := reduceRows(ctx, out, opts.Workers, reduce); err != nil {
		return nil, err
	}
	return out, nil
}

// pixelReducer returns a per-worker function computing output pixel i.
// Each call to the factory yields private scratch space.
type pixelReducer func() func(i int) float64

// reduceRows splits the output into contiguous row chunks, one goroutine per
// chunk. Chunks write disjoint ranges of out.Data.
func reduceRows(ctx context.Context, out *raster.Grid, workers int, reduce pixelReducer) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > out.Height {
		workers = out.Height
	}
	rowsPer := (out.Height + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for r0 := 0; r0 < out.Height; r0 += rowsPer {
		r0 := r0
		r1 := min(r0+rowsPer, out.Height)
		g.Go(func() error {
			pixel := reduce()
			for row := r0; row < r1; row++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				base := row * out.Width
				for col := 0; col < out.Width; col++ {
					out.Data[base+col] = pixel(base + col)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func newMeanReducer(layers []Layer) pixelReducer {
	return func() func(int) float64 {
		vals := make([]float64, 0, len(layers))
		return func(i int) float64 {
			vals = vals[:0]
			for _, l := range layers {
				if v := l.Grid.Data[i]; !math.IsNaN(v) {
					vals = append(vals, v)
				}
			}
			return sortedMean(vals)
		}
	}
}

// sortedMean sorts vals in place and returns their mean, NaN when empty.
func sortedMean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

type weighted struct {
	v, w float64
}

// newWeightedReducer falls back to the unweighted mean at pixels whose only
// valid inputs carry zero weight, so a valid pixel never becomes no-data.
func newWeightedReducer(layers []Layer) pixelReducer {
	return func() func(int) float64 {
		pairs := make([]weighted, 0, len(layers))
		vals := make([]float64, 0, len(layers))
		return func(i int) float64 {
			pairs = pairs[:0]
			for _, l := range layers {
				if v := l.Grid.Data[i]; !math.IsNaN(v) {
					pairs = append(pairs, weighted{v, l.Weight})
				}
			}
			if len(pairs) == 0 {
				return math.NaN()
			}
			sort.Slice(pairs, func(a, b int) bool {
				if pairs[a].v != pairs[b].v {
					return pairs[a].v < pairs[b].v
				}
				return pairs[a].w < pairs[b].w
			})
			var sum, wsum float64
			for _, p := range pairs {
				sum += p.w * p.v
				wsum += p.w
			}
			if wsum > 0 {
				return sum / wsum
			}
			vals = vals[:0]
			for _, p := range pairs {
				vals = append(vals, p.v)
			}
			return sortedMean(vals)
		}
	}
}

// Eligible returns, in input order, the indexes of the layers that can
// contribute to the output under opts. Only PolicyRecency excludes layers:
// those acquired more than Tolerance before Reference.
func Eligible(layers []Layer, opts Options) []int {
	idx := make([]int, 0, len(layers))
	if opts.Policy != PolicyRecency {
		for i := range layers {
			idx = append(idx, i)
		}
		return idx
	}
	reference := recencyReference(layers, opts.Reference)
	for i, l := range layers {
		if reference.Sub(l.Acquired) <= opts.Tolerance {
			idx = append(idx, i)
		}
	}
	return idx
}

func recencyReference(layers []Layer, reference time.Time) time.Time {
	if !reference.IsZero() {
		return reference
	}
	for _, l := range layers {
		if l.Acquired.After(reference) {
			reference = l.Acquired
		}
	}
	return reference
}

// newRecencyReducer orders eligible layers newest first. Layers acquired at
// the same instant keep input order.
func newRecencyReducer(layers []Layer, opts Options) pixelReducer {
	idx := Eligible(layers, opts)
	sort.SliceStable(idx, func(a, b int) bool {
		return layers[idx[a]].Acquired.After(layers[idx[b]].Acquired)
	})
	eligible := make([]*raster.Grid, 0, len(idx))
	for _, i := range idx {
		eligible = append(eligible, layers[i].Grid)
	}
	return func() func(int) float64 {
		return func(i int) float64 {
			for _, g := range eligible {
				if v := g.Data[i]; !math.IsNaN(v) {
					return v
				}
			}
			return math.NaN()
		}
	}
}
