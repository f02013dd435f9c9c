// Package preview renders a fused grid as a heat-map PNG for quick visual
// checks. It is not a cartographic product: axes are in the grid's CRS units
// and no-data pixels are drawn transparent.
package preview

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
)

// Options controls the rendered image.
type Options struct {
	Title string
	Units string
	// Width and Height default to 6 inches.
	Width  vg.Length
	Height vg.Length
	// Colors is the palette size, default 256.
	Colors int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 6 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 6 * vg.Inch
	}
	if o.Colors <= 0 {
		o.Colors = 256
	}
	return o
}

// gridXYZ adapts a north-up Grid to plotter.GridXYZ, whose rows run south to
// north.
type gridXYZ struct {
	g *raster.Grid
}

func (x gridXYZ) Dims() (c, r int) { return x.g.Width, x.g.Height }

func (x gridXYZ) Z(c, r int) float64 { return x.g.At(c, x.g.Height-1-r) }

func (x gridXYZ) X(c int) float64 {
	px, _ := x.g.Transform.PixelCenter(c, 0)
	return px
}

func (x gridXYZ) Y(r int) float64 {
	_, py := x.g.Transform.PixelCenter(0, x.g.Height-1-r)
	return py
}

// Plot builds the heat-map plot for g.
func Plot(g *raster.Grid, opts Options) (*plot.Plot, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	opts = opts.withDefaults()

	hm := plotter.NewHeatMap(gridXYZ{g}, palette.Heat(opts.Colors, 1))
	hm.NaN = color.Transparent

	s := raster.Summarize(g)
	switch {
	case s.Valid == 0:
		hm.Min, hm.Max = 0, 1
	case s.Min == s.Max:
		hm.Min, hm.Max = s.Min-0.5, s.Max+0.5
	default:
		hm.Min, hm.Max = s.Min, s.Max
	}

	p := plot.New()
	p.Title.Text = opts.Title
	if opts.Units != "" {
		p.Title.Text = strings.TrimSpace(fmt.Sprintf("%s (%s, %.2f to %.2f)", opts.Title, opts.Units, hm.Min, hm.Max))
	}
	p.X.Label.Text = "x " + g.CRS
	p.Y.Label.Text = "y " + g.CRS
	p.Add(hm)
	return p, nil
}

// Encode renders g as PNG onto w.
func Encode(w io.Writer, g *raster.Grid, opts Options) error {
	p, err := Plot(g, opts)
	if err != nil {
		return err
	}
	opts = opts.withDefaults()
	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	return nil
}

// Write renders g to a .png file on fs.
func Write(fs fsutil.FileSystem, path string, g *raster.Grid, opts Options) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".png" {
		return fmt.Errorf("preview: unsupported extension %q, want .png", ext)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	if err := Encode(f, g, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
