package raster

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// DefaultNoData is the NODATA_value written when none is configured.
const DefaultNoData = -9999.0

// ReadASC decodes an Esri ASCII grid. Cells equal to NODATA_value become NaN.
// The returned grid has no CRS; callers take it from the sidecar.
func ReadASC(r io.Reader) (*Grid, float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return sc.Text(), true
	}

	header := map[string]float64{}
	var first string
	for {
		tok, ok := next()
		if !ok {
			if err := sc.Err(); err != nil {
				return nil, 0, err
			}
			return nil, 0, errors.New("asc: missing data section")
		}
		key := strings.ToLower(tok)
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			first = tok
			break
		}
		val, ok := next()
		if !ok {
			return nil, 0, fmt.Errorf("asc: header %q has no value", tok)
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("asc: header %q: %w", tok, err)
		}
		header[key] = f
	}

	ncols, nrows := int(header["ncols"]), int(header["nrows"])
	if ncols <= 0 || nrows <= 0 {
		return nil, 0, fmt.Errorf("asc: invalid dimensions %dx%d", ncols, nrows)
	}
	dx, okDX := header["dx"]
	dy, okDY := header["dy"]
	if cs, ok := header["cellsize"]; ok {
		dx, dy, okDX, okDY = cs, cs, true, true
	}
	if !okDX || !okDY || dx <= 0 || dy <= 0 {
		return nil, 0, errors.New("asc: missing or invalid cellsize")
	}

	var xll, yll float64
	switch {
	case hasKey(header, "xllcorner") && hasKey(header, "yllcorner"):
		xll, yll = header["xllcorner"], header["yllcorner"]
	case hasKey(header, "xllcenter") && hasKey(header, "yllcenter"):
		xll, yll = header["xllcenter"]-dx/2, header["yllcenter"]-dy/2
	default:
		return nil, 0, errors.New("asc: missing lower-left origin")
	}

	nodata := DefaultNoData
	if v, ok := header["nodata_value"]; ok {
		nodata = v
	}

	top := yll + float64(nrows)*dy
	g := &Grid{
		Width:     ncols,
		Height:    nrows,
		Transform: GeoTransform{xll, dx, 0, top, 0, -dy},
		Data:      make([]float64, ncols*nrows),
	}
	tok := first
	for i := range g.Data {
		if i > 0 {
			var ok bool
			if tok, ok = next(); !ok {
				if err := sc.Err(); err != nil {
					return nil, 0, err
				}
				return nil, 0, fmt.Errorf("asc: expected %d cells, got %d", len(g.Data), i)
			}
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("asc: cell %d: %w", i, err)
		}
		if v == nodata {
			v = math.NaN()
		}
		g.Data[i] = v
	}
	return g, nodata, nil
}

func hasKey(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

// WriteASC encodes g as an Esri ASCII grid, writing NaN cells as nodata.
// Non-square pixels use the dx/dy header extension.
func WriteASC(w io.Writer, g *Grid, nodata float64) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if !g.Transform.NorthUp() || g.Transform[5] >= 0 {
		return ErrRotatedTransform
	}
	if math.IsNaN(nodata) {
		return errors.New("asc: NODATA_value must be a number")
	}
	dx, dy := g.Resolution()
	minX, minY, _, _ := g.Bounds()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", g.Width, g.Height)
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n", formatFloat(minX), formatFloat(minY))
	if dx == dy {
		fmt.Fprintf(bw, "cellsize %s\n", formatFloat(dx))
	} else {
		fmt.Fprintf(bw, "dx %s\ndy %s\n", formatFloat(dx), formatFloat(dy))
	}
	fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(nodata))

	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			v := g.At(col, row)
			if math.IsNaN(v) {
				v = nodata
			}
			bw.WriteString(formatFloat(v))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
