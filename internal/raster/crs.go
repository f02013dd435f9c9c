package raster

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/geom/proj"
)

// WGS84 is the geographic CRS AOI geometries are expressed in.
const WGS84 = "EPSG:4326"

// ErrUnknownCRS is returned when a CRS string cannot be resolved.
var ErrUnknownCRS = errors.New("unknown CRS")

// Transformer maps a coordinate from one CRS to another.
type Transformer func(x, y float64) (float64, float64, error)

func identity(x, y float64) (float64, float64, error) { return x, y, nil }

// CanonicalCRS normalises a CRS identifier for comparison: EPSG codes are
// upper-cased with no spaces, proj4 strings are whitespace-collapsed.
func CanonicalCRS(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), "EPSG:") {
		return "EPSG:" + strings.TrimSpace(s[5:])
	}
	return strings.Join(strings.Fields(s), " ")
}

// Proj4 resolves a CRS identifier to a proj4 definition. Supported EPSG
// codes are 4326, 3857 and the WGS84 UTM zones (32601-32660, 32701-32760).
// Strings starting with "+proj" are returned unchanged.
func Proj4(crs string) (string, error) {
	c := CanonicalCRS(crs)
	if strings.HasPrefix(c, "+proj") {
		return c, nil
	}
	if !strings.HasPrefix(c, "EPSG:") {
		return "", fmt.Errorf("%w: %q", ErrUnknownCRS, crs)
	}
	code, err := strconv.Atoi(c[5:])
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownCRS, crs)
	}
	switch {
	case code == 4326:
		return "+proj=longlat +datum=WGS84 +no_defs", nil
	case code == 3857:
		return "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +no_defs", nil
	case code >= 32601 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), nil
	case code >= 32701 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCRS, crs)
}

// UTMZoneFor returns the WGS84 UTM EPSG code covering a lon/lat position.
func UTMZoneFor(lon, lat float64) string {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone > 60 {
		zone = 60
	}
	if zone < 1 {
		zone = 1
	}
	if lat < 0 {
		return fmt.Sprintf("EPSG:%d", 32700+zone)
	}
	return fmt.Sprintf("EPSG:%d", 32600+zone)
}

var srCache sync.Map // canonical CRS -> *proj.SR

func spatialReference(crs string) (*proj.SR, error) {
	key := CanonicalCRS(crs)
	if sr, ok := srCache.Load(key); ok {
		return sr.(*proj.SR), nil
	}
	def, err := Proj4(crs)
	if err != nil {
		return nil, err
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", crs, err)
	}
	srCache.Store(key, sr)
	return sr, nil
}

// NewTransformer returns a transformer from src to dst coordinates.
// Identical CRSs yield the identity without touching proj.
func NewTransformer(src, dst string) (Transformer, error) {
	if CanonicalCRS(src) == CanonicalCRS(dst) {
		return identity, nil
	}
	from, err := spatialReference(src)
	if err != nil {
		return nil, err
	}
	to, err := spatialReference(dst)
	if err != nil {
		return nil, err
	}
	tf, err := from.NewTransform(to)
	if err != nil {
		return nil, fmt.Errorf("transform %s -> %s: %w", src, dst, err)
	}
	return Transformer(tf), nil
}

// boundsDensify is the number of samples taken along each bounds edge so
// curved edges in the destination CRS stay inside the transformed box.
const boundsDensify = 21

// TransformBounds transforms an axis-aligned box between CRSs and returns
// the axis-aligned box enclosing the densified edges.
func TransformBounds(src, dst string, minX, minY, maxX, maxY float64) (float64, float64, float64, float64, error) {
	tf, err := NewTransformer(src, dst)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	outMinX, outMinY := math.Inf(1), math.Inf(1)
	outMaxX, outMaxY := math.Inf(-1), math.Inf(-1)
	visit := func(x, y float64) error {
		tx, ty, err := tf(x, y)
		if err != nil {
			return err
		}
		if math.IsNaN(tx) || math.IsNaN(ty) || math.IsInf(tx, 0) || math.IsInf(ty, 0) {
			return fmt.Errorf("non-finite transform of (%g, %g)", x, y)
		}
		outMinX = math.Min(outMinX, tx)
		outMinY = math.Min(outMinY, ty)
		outMaxX = math.Max(outMaxX, tx)
		outMaxY = math.Max(outMaxY, ty)
		return nil
	}
	for i := 0; i < boundsDensify; i++ {
		f := float64(i) / float64(boundsDensify-1)
		x := minX + f*(maxX-minX)
		y := minY + f*(maxY-minY)
		for _, p := range [][2]float64{{x, minY}, {x, maxY}, {minX, y}, {maxX, y}} {
			if err := visit(p[0], p[1]); err != nil {
				return 0, 0, 0, 0, err
			}
		}
	}
	return outMinX, outMinY, outMaxX, outMaxY, nil
}

// TargetForBounds builds a TargetGrid in crs covering a box expressed in
// srcCRS (typically the AOI bounds in WGS84).
func TargetForBounds(srcCRS, crs string, resolution, minX, minY, maxX, maxY float64) (TargetGrid, error) {
	x0, y0, x1, y1, err := TransformBounds(srcCRS, crs, minX, minY, maxX, maxY)
	if err != nil {
		return TargetGrid{}, err
	}
	return NewTargetGrid(crs, resolution, x0, y0, x1, y1)
}
