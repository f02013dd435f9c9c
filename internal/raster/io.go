package raster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
)

// Format names an output raster encoding.
type Format string

// FormatASCIIGrid is the Esri ASCII grid: single band, float values.
const FormatASCIIGrid Format = "asc"

// SidecarSuffix is appended to a raster path to name its metadata sidecar.
const SidecarSuffix = ".json"

// Opener loads the raster behind a locator.
type Opener interface {
	Open(ctx context.Context, locator string) (*Grid, error)
}

// Reprojector places a grid onto a target grid with a resampling kernel.
type Reprojector interface {
	Reproject(ctx context.Context, g *Grid, target TargetGrid, kernel Kernel) (*Grid, error)
}

// Writer persists a grid.
type Writer interface {
	Write(ctx context.Context, g *Grid, path string, opts WriteOptions) error
}

// IO is the raster collaborator consumed by the pipeline.
type IO interface {
	Opener
	Reprojector
	Writer
}

// Sidecar is the serialized metadata stored next to a raster. Attributes
// carry provenance and processing parameters as key/value pairs.
type Sidecar struct {
	CRS        string         `json:"crs"`
	NoData     float64        `json:"nodata"`
	Units      string         `json:"units,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// WriteOptions controls Write.
type WriteOptions struct {
	Format Format
	// NoData is written for NaN cells. Zero value means DefaultNoData;
	// set NoDataSet to write a literal zero.
	NoData    float64
	NoDataSet bool
	Units     string
	// WriteSidecar emits <path>.json with the CRS, nodata and Attributes.
	WriteSidecar bool
	Attributes   map[string]any
}

func (o WriteOptions) nodata() float64 {
	if o.NoDataSet || o.NoData != 0 {
		return o.NoData
	}
	return DefaultNoData
}

// LocalIO reads and writes ASCII grids on a filesystem and reprojects in
// process. DefaultCRS is assumed for rasters that have no sidecar.
type LocalIO struct {
	FS         fsutil.FileSystem
	DefaultCRS string
}

// NewLocalIO returns a LocalIO over the OS filesystem.
func NewLocalIO() *LocalIO {
	return &LocalIO{FS: fsutil.OSFileSystem{}}
}

func (l *LocalIO) fs() fsutil.FileSystem {
	if l.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return l.FS
}

// LocatorPath turns a locator into a filesystem path. Only local paths and
// file:// URLs are understood.
func LocatorPath(locator string) (string, error) {
	switch {
	case locator == "":
		return "", errors.New("empty locator")
	case strings.HasPrefix(locator, "file://"):
		return strings.TrimPrefix(locator, "file://"), nil
	case strings.Contains(locator, "://"):
		return "", fmt.Errorf("unsupported locator scheme in %q", locator)
	}
	return locator, nil
}

// Open reads an ASCII grid and its optional sidecar.
func (l *LocalIO) Open(ctx context.Context, locator string) (*Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := LocatorPath(locator)
	if err != nil {
		return nil, err
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".asc" {
		return nil, fmt.Errorf("unsupported raster format %q", ext)
	}

	f, err := l.fs().Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster: %w", err)
	}
	defer f.Close()

	g, _, err := ReadASC(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	g.CRS = l.DefaultCRS
	if sc, err := l.ReadSidecar(path); err == nil {
		if sc.CRS != "" {
			g.CRS = sc.CRS
		}
	} else if !errors.Is(err, errNoSidecar) {
		return nil, err
	}
	if g.CRS == "" {
		return nil, fmt.Errorf("%w: %s has no sidecar CRS and no default is set", ErrUnknownCRS, path)
	}
	return g, nil
}

var errNoSidecar = errors.New("no sidecar")

// ReadSidecar loads <path>.json.
func (l *LocalIO) ReadSidecar(path string) (*Sidecar, error) {
	name := path + SidecarSuffix
	if !l.fs().Exists(name) {
		return nil, errNoSidecar
	}
	data, err := l.fs().ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse sidecar %s: %w", name, err)
	}
	return &sc, nil
}

// Reproject resamples g onto target. A grid already on the target is copied.
func (l *LocalIO) Reproject(ctx context.Context, g *Grid, target TargetGrid, kernel Kernel) (*Grid, error) {
	if target.Matches(g) {
		return g.Clone(), nil
	}
	return Resample(ctx, g, target, kernel)
}

// Write encodes g at path, creating parent directories as needed.
func (l *LocalIO) Write(ctx context.Context, g *Grid, path string, opts WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	format := opts.Format
	if format == "" {
		format = FormatASCIIGrid
	}
	if format != FormatASCIIGrid {
		return fmt.Errorf("unsupported output format %q", format)
	}
	nodata := opts.nodata()
	if math.IsNaN(nodata) {
		return errors.New("nodata value must be a number")
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := l.fs().MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := WriteASC(&buf, g, nodata); err != nil {
		return err
	}
	if err := l.fs().WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write raster: %w", err)
	}

	if !opts.WriteSidecar {
		return nil
	}
	sc := Sidecar{CRS: g.CRS, NoData: nodata, Units: opts.Units, Attributes: opts.Attributes}
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := l.fs().WriteFile(path+SidecarSuffix, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}
