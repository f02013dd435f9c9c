// Package catalog discovers scene descriptors for an AOI and time window.
//
// Responsibilities: the Catalog interface consumed by the pipeline, and three
// implementations: Static (a fixed list, used for replayable runs and
// tests), Manifest (a GeoJSON FeatureCollection of scene footprints), and
// Index (the SQLite scene index in internal/db). Catalogs never touch pixel
// data.
// Key types: Catalog, Static, Manifest, Index.
//
// Dependency rule: catalog may depend on scene, aoi and db, never on quality,
// normalize, fusion or pipeline.
package catalog
