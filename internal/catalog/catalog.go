package catalog

import (
	"context"
	"errors"
	"sort"

	"github.com/paulmach/orb"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/aoi"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
)

// ErrSearch wraps failures of the underlying catalog source.
var ErrSearch = errors.New("catalog search failed")

// Catalog returns the scenes acquired inside window whose footprint overlaps
// the AOI. An empty sensors slice means every sensor class.
type Catalog interface {
	Search(ctx context.Context, area orb.Geometry, window scene.Window, sensors []scene.SensorClass) ([]scene.Descriptor, error)
}

// Static replays a fixed descriptor list regardless of the query.
type Static struct {
	Scenes []scene.Descriptor
	// Err, when set, is returned by every Search.
	Err error
}

// Search returns a copy of s.Scenes.
func (s Static) Search(ctx context.Context, _ orb.Geometry, _ scene.Window, _ []scene.SensorClass) ([]scene.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]scene.Descriptor(nil), s.Scenes...), nil
}

// Matches reports whether d satisfies the search constraints.
func Matches(d scene.Descriptor, area orb.Geometry, window scene.Window, sensors []scene.SensorClass) bool {
	if !window.Contains(d.Acquired) {
		return false
	}
	if len(sensors) > 0 && !containsSensor(sensors, d.Sensor) {
		return false
	}
	if area != nil && !aoi.Intersects(area, d.Footprint) {
		return false
	}
	return true
}

func containsSensor(sensors []scene.SensorClass, c scene.SensorClass) bool {
	for _, s := range sensors {
		if s == c {
			return true
		}
	}
	return false
}

// sortDescriptors orders by acquisition time, then id, so repeated searches
// yield the same sequence.
func sortDescriptors(descs []scene.Descriptor) {
	sort.SliceStable(descs, func(i, j int) bool {
		if !descs[i].Acquired.Equal(descs[j].Acquired) {
			return descs[i].Acquired.Before(descs[j].Acquired)
		}
		return descs[i].ID < descs[j].ID
	})
}
