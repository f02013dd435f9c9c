package raster

import (
	"fmt"
	"strings"
)

// Kernel selects the resampling method used when a grid is reprojected.
type Kernel int

const (
	// KernelNearest copies the source pixel under the target pixel centre.
	KernelNearest Kernel = iota
	// KernelBilinear interpolates the four nearest source pixels.
	KernelBilinear
	// KernelCubic interpolates sixteen source pixels with a Keys cubic.
	KernelCubic
	// KernelAverage takes the area-weighted mean of the source footprint.
	KernelAverage
)

// String returns the configuration name of the kernel.
func (k Kernel) String() string {
	switch k {
	case KernelNearest:
		return "nearest"
	case KernelBilinear:
		return "bilinear"
	case KernelCubic:
		return "cubic"
	case KernelAverage:
		return "average"
	default:
		return fmt.Sprintf("kernel(%d)", int(k))
	}
}

// Smooth reports whether the kernel interpolates between pixel centres.
func (k Kernel) Smooth() bool {
	return k == KernelBilinear || k == KernelCubic
}

// ParseKernel parses a kernel name. "area" is accepted as an alias for average.
func ParseKernel(s string) (Kernel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest":
		return KernelNearest, nil
	case "bilinear":
		return KernelBilinear, nil
	case "cubic":
		return KernelCubic, nil
	case "average", "area":
		return KernelAverage, nil
	default:
		return KernelNearest, fmt.Errorf("unknown resample kernel %q (want nearest, bilinear, cubic or average)", s)
	}
}
