package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
)

// maxManifestSize bounds manifest files read from disk.
const maxManifestSize = 64 * 1024 * 1024

// Manifest property keys. Each feature's geometry is the scene footprint in
// WGS84; a null geometry means the footprint is unknown.
const (
	PropID               = "id"
	PropSensor           = "sensor"
	PropData             = "data"
	PropQuality          = "quality"
	PropPan              = "pan"
	PropAcquired         = "acquired"
	PropNativeResolution = "native_resolution"
	PropNativeCRS        = "native_crs"
)

// Manifest is an in-memory catalog loaded from a GeoJSON FeatureCollection.
type Manifest struct {
	scenes []scene.Descriptor
}

// NewManifest builds a manifest over already-parsed descriptors.
func NewManifest(descs []scene.Descriptor) *Manifest {
	m := &Manifest{scenes: append([]scene.Descriptor(nil), descs...)}
	sortDescriptors(m.scenes)
	return m
}

// LoadManifest reads a manifest file. Relative file locators inside it are
// resolved against the manifest's directory.
func LoadManifest(fs fsutil.FileSystem, path string) (*Manifest, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if len(data) > maxManifestSize {
		return nil, fmt.Errorf("manifest %s is larger than %d bytes", path, maxManifestSize)
	}
	descs, err := ParseManifest(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	diagf("loaded %d scene(s) from manifest %s", len(descs), path)
	return NewManifest(descs), nil
}

// ParseManifest decodes a FeatureCollection into descriptors. baseDir, when
// non-empty, anchors relative locators.
func ParseManifest(data []byte, baseDir string) ([]scene.Descriptor, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	descs := make([]scene.Descriptor, 0, len(fc.Features))
	seen := make(map[string]int, len(fc.Features))
	for i, f := range fc.Features {
		d, err := featureDescriptor(f, baseDir)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		if prev, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("feature %d: duplicate scene id %q (first at feature %d)", i, d.ID, prev)
		}
		seen[d.ID] = i
		descs = append(descs, d)
	}
	return descs, nil
}

func featureDescriptor(f *geojson.Feature, baseDir string) (scene.Descriptor, error) {
	props := f.Properties
	var d scene.Descriptor

	d.ID = props.MustString(PropID, "")
	if d.ID == "" {
		if id, ok := f.ID.(string); ok {
			d.ID = id
		}
	}

	sensor, err := scene.ParseSensorClass(props.MustString(PropSensor, ""))
	if err != nil {
		return d, fmt.Errorf("scene %q: %w", d.ID, err)
	}
	d.Sensor = sensor

	acquired := props.MustString(PropAcquired, "")
	d.Acquired, err = time.Parse(time.RFC3339, acquired)
	if err != nil {
		return d, fmt.Errorf("scene %q: acquired %q: %w", d.ID, acquired, err)
	}
	d.Acquired = d.Acquired.UTC()

	d.DataLocator = resolveLocator(baseDir, props.MustString(PropData, ""))
	d.QualityLocator = resolveLocator(baseDir, props.MustString(PropQuality, ""))
	d.PanLocator = resolveLocator(baseDir, props.MustString(PropPan, ""))
	d.NativeResolution = props.MustFloat64(PropNativeResolution, 0)
	d.NativeCRS = props.MustString(PropNativeCRS, "")

	if f.Geometry != nil {
		d.Footprint = f.Geometry.Bound()
	} else if len(f.BBox) == 4 {
		d.Footprint = orb.Bound{Min: orb.Point{f.BBox[0], f.BBox[1]}, Max: orb.Point{f.BBox[2], f.BBox[3]}}
	}

	return d, d.Validate()
}

// resolveLocator anchors a relative path at baseDir. Locators with a scheme
// and absolute paths are returned unchanged.
func resolveLocator(baseDir, loc string) string {
	if loc == "" || baseDir == "" || strings.Contains(loc, "://") || filepath.IsAbs(loc) {
		return loc
	}
	return filepath.Join(baseDir, loc)
}

// Scenes returns every descriptor in the manifest in catalog order.
func (m *Manifest) Scenes() []scene.Descriptor {
	return append([]scene.Descriptor(nil), m.scenes...)
}

// Search filters the manifest by window, sensors and AOI overlap.
func (m *Manifest) Search(ctx context.Context, area orb.Geometry, window scene.Window, sensors []scene.SensorClass) ([]scene.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []scene.Descriptor
	for _, d := range m.scenes {
		if Matches(d, area, window, sensors) {
			out = append(out, d)
		} else {
			tracef("scene %s excluded by search constraints", d.ID)
		}
	}
	return out, nil
}
