// Package aoi loads the area of interest from GeoJSON, WKT or a file.
// Geometries are WGS84 longitude/latitude and are used only for bounds.
package aoi

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
)

// ErrInvalidAOI is returned for geometries that cannot serve as an AOI.
var ErrInvalidAOI = errors.New("invalid AOI")

// maxFileSize bounds AOI files read from disk.
const maxFileSize = 16 * 1024 * 1024

// Load resolves arg as inline GeoJSON, an existing file, or inline WKT, in
// that order.
func Load(fs fsutil.FileSystem, arg string) (orb.Geometry, error) {
	s := strings.TrimSpace(arg)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAOI)
	}
	if strings.HasPrefix(s, "{") {
		return ParseGeoJSON([]byte(s))
	}
	if fs != nil && fs.Exists(s) {
		return LoadFile(fs, s)
	}
	return ParseWKT(s)
}

// LoadFile reads a .geojson/.json or .wkt file.
func LoadFile(fs fsutil.FileSystem, path string) (orb.Geometry, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read AOI file: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrInvalidAOI, path, maxFileSize)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return ParseGeoJSON(data)
	case ".wkt", ".txt":
		return ParseWKT(string(data))
	}
	return nil, fmt.Errorf("%w: unsupported AOI file extension %q", ErrInvalidAOI, filepath.Ext(path))
}

// ParseWKT parses a POLYGON or MULTIPOLYGON.
func ParseWKT(s string) (orb.Geometry, error) {
	g, err := wkt.Unmarshal(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: wkt: %w", ErrInvalidAOI, err)
	}
	return g, Validate(g)
}

// ParseGeoJSON accepts a bare geometry, a Feature or a FeatureCollection.
// The polygons of a collection are merged into one MultiPolygon.
func ParseGeoJSON(data []byte) (orb.Geometry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: geojson: %w", ErrInvalidAOI, err)
	}

	var g orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: geojson: %w", ErrInvalidAOI, err)
		}
		var mp orb.MultiPolygon
		for _, f := range fc.Features {
			switch fg := f.Geometry.(type) {
			case orb.Polygon:
				mp = append(mp, fg)
			case orb.MultiPolygon:
				mp = append(mp, fg...)
			}
		}
		switch len(mp) {
		case 0:
			return nil, fmt.Errorf("%w: feature collection has no polygons", ErrInvalidAOI)
		case 1:
			g = mp[0]
		default:
			g = mp
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: geojson: %w", ErrInvalidAOI, err)
		}
		g = f.Geometry
	default:
		geom, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: geojson: %w", ErrInvalidAOI, err)
		}
		g = geom.Geometry()
	}
	return g, Validate(g)
}

// Validate checks that g is a non-empty polygonal geometry in lon/lat range.
func Validate(g orb.Geometry) error {
	switch t := g.(type) {
	case orb.Polygon:
		if len(t) == 0 || len(t[0]) < 4 {
			return fmt.Errorf("%w: polygon needs a closed ring of at least 4 points", ErrInvalidAOI)
		}
	case orb.MultiPolygon:
		if len(t) == 0 {
			return fmt.Errorf("%w: empty multipolygon", ErrInvalidAOI)
		}
		for _, p := range t {
			if err := Validate(p); err != nil {
				return err
			}
		}
	case orb.Bound:
	case nil:
		return fmt.Errorf("%w: no geometry", ErrInvalidAOI)
	default:
		return fmt.Errorf("%w: %s is not polygonal", ErrInvalidAOI, g.GeoJSONType())
	}
	b := g.Bound()
	if b.Min[0] < -180 || b.Max[0] > 180 || b.Min[1] < -90 || b.Max[1] > 90 {
		return fmt.Errorf("%w: bounds %v outside lon/lat range", ErrInvalidAOI, b)
	}
	if b.Max[0] <= b.Min[0] || b.Max[1] <= b.Min[1] {
		return fmt.Errorf("%w: degenerate bounds %v", ErrInvalidAOI, b)
	}
	return nil
}

// Target builds the target grid covering g's bounds in crs at resolution.
// An empty crs selects the UTM zone of the AOI centre.
func Target(g orb.Geometry, crs string, resolution float64) (raster.TargetGrid, error) {
	b := g.Bound()
	if crs == "" {
		c := b.Center()
		crs = raster.UTMZoneFor(c[0], c[1])
	}
	return raster.TargetForBounds(raster.WGS84, crs, resolution, b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

// Intersects reports whether the AOI bounds overlap a footprint. A zero
// footprint is treated as unknown and always intersects.
func Intersects(g orb.Geometry, footprint orb.Bound) bool {
	if footprint == (orb.Bound{}) {
		return true
	}
	return g.Bound().Intersects(footprint)
}
