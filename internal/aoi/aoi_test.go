package aoi

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
)

// Jordanelle Reservoir, Utah.
const (
	jordanelleWKT     = "POLYGON((-111.45 40.58, -111.35 40.58, -111.35 40.66, -111.45 40.66, -111.45 40.58))"
	jordanelleGeoJSON = `{"type":"Polygon","coordinates":[[[-111.45,40.58],[-111.35,40.58],[-111.35,40.66],[-111.45,40.66],[-111.45,40.58]]]}`
)

func TestLoad_Forms(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("lake.geojson", []byte(`{"type":"Feature","properties":{"name":"Jordanelle"},"geometry":`+jordanelleGeoJSON+`}`), 0o644))
	require.NoError(t, mfs.WriteFile("lake.wkt", []byte(jordanelleWKT+"\n"), 0o644))

	for _, arg := range []string{jordanelleWKT, jordanelleGeoJSON, "lake.geojson", "lake.wkt"} {
		g, err := Load(mfs, arg)
		require.NoError(t, err, arg)
		b := g.Bound()
		assert.InDelta(t, -111.45, b.Min[0], 1e-12, arg)
		assert.InDelta(t, 40.66, b.Max[1], 1e-12, arg)
		_, isPoly := g.(orb.Polygon)
		assert.True(t, isPoly, arg)
	}
}

func TestParseGeoJSON_FeatureCollectionMerged(t *testing.T) {
	fc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
		{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[5,5]}},
		{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[2,2],[3,2],[3,3],[2,3],[2,2]]]}}
	]}`
	g, err := ParseGeoJSON([]byte(fc))
	require.NoError(t, err)
	mp, ok := g.(orb.MultiPolygon)
	require.True(t, ok, "expected MultiPolygon, got %T", g)
	assert.Len(t, mp, 2)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{3, 3}}, g.Bound())
}

func TestLoad_Invalid(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("lake.shp", []byte("binary"), 0o644))

	tests := map[string]string{
		"empty":        "  ",
		"bad wkt":      "POLYGON((",
		"point":        "POINT(1 2)",
		"bad json":     `{"type":`,
		"out of range": "POLYGON((170 80, 190 80, 190 85, 170 85, 170 80))",
		"no polygons":  `{"type":"FeatureCollection","features":[]}`,
		"unsupported":  "lake.shp",
	}
	for name, arg := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(mfs, arg)
			assert.True(t, errors.Is(err, ErrInvalidAOI), "err = %v", err)
		})
	}
}

func TestTarget(t *testing.T) {
	g, err := ParseWKT(jordanelleWKT)
	require.NoError(t, err)

	tg, err := Target(g, "", 30)
	require.NoError(t, err)
	assert.Equal(t, "EPSG:32612", tg.CRS)
	assert.Zero(t, math.Mod(tg.MinX, 30))
	// ~8.4 km wide, ~8.9 km tall.
	assert.InDelta(t, 8500, tg.MaxX-tg.MinX, 400)
	assert.InDelta(t, 8900, tg.MaxY-tg.MinY, 400)

	_, err = Target(g, "EPSG:0", 30)
	assert.Error(t, err)
}

func TestIntersects(t *testing.T) {
	g, err := ParseWKT(jordanelleWKT)
	require.NoError(t, err)
	assert.True(t, Intersects(g, orb.Bound{}), "unknown footprint")
	assert.True(t, Intersects(g, orb.Bound{Min: orb.Point{-112, 40}, Max: orb.Point{-111, 41}}))
	assert.False(t, Intersects(g, orb.Bound{Min: orb.Point{2, 48}, Max: orb.Point{3, 49}}))
}
