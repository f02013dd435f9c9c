// Package raster owns the in-memory grid model shared by every fusion stage.
//
// Responsibilities: the Grid and TargetGrid types, resampling kernels,
// CRS resolution and coordinate transforms, the Esri ASCII grid codec with
// its JSON sidecar, and the IO collaborator the pipeline loads, reprojects
// and writes through.
//
// Invariant: a Grid's no-data sentinel is NaN in memory. File formats carry
// their own NODATA value, translated at the read/write boundary.
//
// Dependency rule: raster depends on nothing else in this module except
// fsutil. No scene, quality or fusion logic belongs here.
package raster
