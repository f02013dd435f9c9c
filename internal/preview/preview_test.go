package preview

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func testGrid(values ...float64) *raster.Grid {
	g := raster.NewGrid(3, 2, raster.GeoTransform{500000, 30, 0, 4000000, 0, -30}, "EPSG:32612")
	copy(g.Data, values)
	return g
}

func TestGridXYZ_FlipsRows(t *testing.T) {
	g := testGrid(1, 2, 3, 4, 5, 6)
	x := gridXYZ{g}

	c, r := x.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 2, r)
	// Plot row 0 is the southern grid row.
	assert.Equal(t, 4.0, x.Z(0, 0))
	assert.Equal(t, 3.0, x.Z(2, 1))
	assert.Equal(t, 500015.0, x.X(0))
	assert.Equal(t, 3999955.0, x.Y(0))
	assert.Equal(t, 3999985.0, x.Y(1))
}

func TestEncode_PNG(t *testing.T) {
	tests := map[string]*raster.Grid{
		"values":     testGrid(290, 295, math.NaN(), 300, 301, 302),
		"constant":   testGrid(300, 300, 300, 300, 300, 300),
		"all nodata": testGrid(math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()),
	}
	for name, g := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, g, Options{Title: "LST", Units: "kelvin"}))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic), "output is not a PNG")
		})
	}
}

func TestPlot_RangeFromValidPixels(t *testing.T) {
	p, err := Plot(testGrid(290, 295, math.NaN(), 300, 301, 310), Options{Title: "LST", Units: "kelvin"})
	require.NoError(t, err)
	assert.Contains(t, p.Title.Text, "290.00 to 310.00")
}

func TestWrite(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	require.NoError(t, Write(fs, "/out/preview.png", testGrid(1, 2, 3, 4, 5, 6), Options{}))
	data, err := fs.ReadFile("/out/preview.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))

	assert.Error(t, Write(fs, "/out/preview.jpg", testGrid(1, 2, 3, 4, 5, 6), Options{}))
	assert.Error(t, Write(fs, "/out/bad.png", &raster.Grid{}, Options{}))
}
