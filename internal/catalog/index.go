package catalog

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/db"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
)

// SceneSearcher is the read side of the scene index.
type SceneSearcher interface {
	SearchScenes(ctx context.Context, q db.SceneQuery) ([]scene.Descriptor, error)
}

// Index searches the SQLite scene index. The bounding-box prefilter runs in
// SQL; the result is then refined with the same rules Manifest applies.
type Index struct {
	Store SceneSearcher
}

// NewIndex wraps a scene store.
func NewIndex(store SceneSearcher) *Index {
	return &Index{Store: store}
}

// Search queries the index.
func (x *Index) Search(ctx context.Context, area orb.Geometry, window scene.Window, sensors []scene.SensorClass) ([]scene.Descriptor, error) {
	q := db.SceneQuery{Start: window.Start, End: window.End, Sensors: sensors}
	if area != nil {
		q.Bound = area.Bound()
	}
	found, err := x.Store.SearchScenes(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearch, err)
	}

	out := found[:0]
	for _, d := range found {
		if Matches(d, area, window, sensors) {
			out = append(out, d)
		}
	}
	diagf("index returned %d scene(s), %d after refinement", len(found), len(out))
	return out, nil
}

// Ingest upserts every descriptor of a manifest into the store.
func Ingest(ctx context.Context, store db.SceneStore, m *Manifest) (int, error) {
	descs := m.Scenes()
	if err := store.UpsertScenes(ctx, descs); err != nil {
		return 0, err
	}
	opsf("ingested %d scene(s) into the index", len(descs))
	return len(descs), nil
}
