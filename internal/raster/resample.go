package raster

import (
	"context"
	"fmt"
	"math"
)

// minValidCoverage is the share of a target pixel's kernel weight that must
// come from valid source pixels. Below it the output pixel is no-data, so
// masked boundaries never receive invented values.
const minValidCoverage = 0.5

// Resample places src onto target using kernel. Source pixels outside the
// source raster count as no-data. The context is checked once per output row.
func Resample(ctx context.Context, src *Grid, target TargetGrid, kernel Kernel) (*Grid, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if !src.Transform.NorthUp() {
		return nil, ErrRotatedTransform
	}
	if src.CRS == "" {
		return nil, fmt.Errorf("%w: source grid has no CRS", ErrUnknownCRS)
	}
	tf, err := NewTransformer(target.CRS, src.CRS)
	if err != nil {
		return nil, err
	}

	out := target.NewGrid()
	ot := out.Transform
	for row := 0; row < out.Height; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for col := 0; col < out.Width; col++ {
			var v float64
			if kernel == KernelAverage {
				v = sampleAverage(src, tf, ot, col, row)
			} else {
				x, y := ot.PixelCenter(col, row)
				sx, sy, err := tf(x, y)
				if err != nil {
					continue
				}
				fc, fr := src.Transform.Fractional(sx, sy)
				switch kernel {
				case KernelNearest:
					v = sampleNearest(src, fc, fr)
				case KernelBilinear:
					v = sampleBilinear(src, fc, fr)
				case KernelCubic:
					v = sampleCubic(src, fc, fr)
				default:
					return nil, fmt.Errorf("unsupported kernel %v", kernel)
				}
			}
			out.Data[row*out.Width+col] = v
		}
	}
	return out, nil
}

func sampleNearest(src *Grid, fc, fr float64) float64 {
	c, r := int(math.Floor(fc)), int(math.Floor(fr))
	if !src.InBounds(c, r) {
		return math.NaN()
	}
	return src.At(c, r)
}

func sampleBilinear(src *Grid, fc, fr float64) float64 {
	u, v := fc-0.5, fr-0.5
	c0, r0 := int(math.Floor(u)), int(math.Floor(v))
	du, dv := u-float64(c0), v-float64(r0)

	var sum, weight float64
	for j := 0; j < 2; j++ {
		wy := 1 - dv
		if j == 1 {
			wy = dv
		}
		for i := 0; i < 2; i++ {
			wx := 1 - du
			if i == 1 {
				wx = du
			}
			w := wx * wy
			if w == 0 || !src.InBounds(c0+i, r0+j) {
				continue
			}
			val := src.At(c0+i, r0+j)
			if math.IsNaN(val) {
				continue
			}
			sum += w * val
			weight += w
		}
	}
	if weight < minValidCoverage {
		return math.NaN()
	}
	return sum / weight
}

// keys is the Keys cubic convolution kernel with a = -0.5.
func keys(t float64) float64 {
	const a = -0.5
	t = math.Abs(t)
	switch {
	case t <= 1:
		return (a+2)*t*t*t - (a+3)*t*t + 1
	case t < 2:
		return a*t*t*t - 5*a*t*t + 8*a*t - 4*a
	}
	return 0
}

// sampleCubic needs all sixteen neighbours valid; near no-data or edges it
// degrades to bilinear.
func sampleCubic(src *Grid, fc, fr float64) float64 {
	u, v := fc-0.5, fr-0.5
	c0, r0 := int(math.Floor(u)), int(math.Floor(v))
	du, dv := u-float64(c0), v-float64(r0)

	var sum float64
	for j := -1; j <= 2; j++ {
		wy := keys(float64(j) - dv)
		for i := -1; i <= 2; i++ {
			c, r := c0+i, r0+j
			if !src.InBounds(c, r) {
				return sampleBilinear(src, fc, fr)
			}
			val := src.At(c, r)
			if math.IsNaN(val) {
				return sampleBilinear(src, fc, fr)
			}
			sum += wy * keys(float64(i)-du) * val
		}
	}
	return sum
}

// sampleAverage maps the target pixel's corners into source pixel space and
// averages the overlapped source pixels weighted by overlap area.
func sampleAverage(src *Grid, tf Transformer, ot GeoTransform, col, row int) float64 {
	minC, minR := math.Inf(1), math.Inf(1)
	maxC, maxR := math.Inf(-1), math.Inf(-1)
	for _, corner := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		x := ot[0] + (float64(col)+corner[0])*ot[1]
		y := ot[3] + (float64(row)+corner[1])*ot[5]
		sx, sy, err := tf(x, y)
		if err != nil {
			return math.NaN()
		}
		fc, fr := src.Transform.Fractional(sx, sy)
		minC, maxC = math.Min(minC, fc), math.Max(maxC, fc)
		minR, maxR = math.Min(minR, fr), math.Max(maxR, fr)
	}
	total := (maxC - minC) * (maxR - minR)
	if !(total > 0) {
		return math.NaN()
	}

	var sum, validArea float64
	for r := int(math.Floor(minR)); float64(r) < maxR; r++ {
		oy := math.Min(maxR, float64(r+1)) - math.Max(minR, float64(r))
		if oy <= 0 {
			continue
		}
		for c := int(math.Floor(minC)); float64(c) < maxC; c++ {
			ox := math.Min(maxC, float64(c+1)) - math.Max(minC, float64(c))
			if ox <= 0 || !src.InBounds(c, r) {
				continue
			}
			val := src.At(c, r)
			if math.IsNaN(val) {
				continue
			}
			a := ox * oy
			sum += a * val
			validArea += a
		}
	}
	if validArea < minValidCoverage*total {
		return math.NaN()
	}
	return sum / validArea
}
