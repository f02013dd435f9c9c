// Package normalize places scene grids onto the shared target grid.
//
// Kernel choice and hook eligibility come from a closed table keyed by
// sensor class (see SensorPolicy). Enhancement and sharpening are injected
// strategies; when a hook is absent the plain reprojection path is used and
// no error is raised. Every output, including hook output, is conformed onto
// the target grid so all fusion inputs share CRS, resolution and alignment.
package normalize
