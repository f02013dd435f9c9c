// Package scene owns scene identity and lazy band access.
//
// Responsibilities: the immutable Descriptor produced by a catalog, the
// sensor class enumeration, the query Window, and the Handle that loads a
// scene's data, quality and panchromatic bands at most once per run.
// Key types: Descriptor, SensorClass, Window, Handle.
//
// Dependency rule: scene may depend on raster, never on quality, normalize,
// fusion or pipeline.
package scene
