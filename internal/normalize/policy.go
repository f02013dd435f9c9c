package normalize

import (
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
)

// Role selects the reprojection rules for a sensor class.
type Role int

const (
	// RoleUpscale covers medium-resolution sensors resampled toward a finer
	// target: averaging by default, smooth interpolation on request.
	RoleUpscale Role = iota
	// RoleReference covers the finest sensors: conservative kernels only.
	RoleReference
	// RoleCoarse covers kilometre-class sensors eligible for enhancement.
	RoleCoarse
)

func (r Role) String() string {
	switch r {
	case RoleReference:
		return "reference"
	case RoleCoarse:
		return "coarse"
	}
	return "upscale"
}

// CoarseResolution is the native resolution in metres from which a
// coarse-class scene is treated as kilometre class.
const CoarseResolution = 500.0

// SensorPolicy is the normalization record for one sensor class.
type SensorPolicy struct {
	Role        Role
	Sharpenable bool
	Enhanceable bool
}

var sensorPolicies = map[scene.SensorClass]SensorPolicy{
	scene.LANDSAT:   {Role: RoleReference, Sharpenable: true},
	scene.ECOSTRESS: {Role: RoleUpscale},
	scene.SLSTR:     {Role: RoleCoarse, Enhanceable: true},
	scene.MODIS:     {Role: RoleCoarse, Enhanceable: true},
}

// PolicyFor returns the policy of class. Unknown classes get upscale rules.
func PolicyFor(class scene.SensorClass) SensorPolicy {
	if p, ok := sensorPolicies[class]; ok {
		return p
	}
	return SensorPolicy{Role: RoleUpscale}
}

// Plan is the resolved normalization path for one scene.
type Plan struct {
	Role    Role
	Kernel  raster.Kernel
	Enhance bool
	Sharpen bool
}

// effectiveRole applies the resolution overrides to the class role: a
// reference scene coarser than the target, or a coarse scene finer than
// CoarseResolution, follows upscale rules.
func effectiveRole(p SensorPolicy, native, target float64) Role {
	switch p.Role {
	case RoleReference:
		if native > target {
			return RoleUpscale
		}
	case RoleCoarse:
		if native > 0 && native < CoarseResolution {
			return RoleUpscale
		}
	}
	return p.Role
}

func referenceKernel(configured raster.Kernel) raster.Kernel {
	if configured == raster.KernelNearest || configured == raster.KernelBilinear {
		return configured
	}
	return raster.KernelNearest
}

func upscaleKernel(configured raster.Kernel) raster.Kernel {
	if configured.Smooth() {
		return configured
	}
	return raster.KernelAverage
}
