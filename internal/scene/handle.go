package scene

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
)

var (
	// ErrDataUnavailable means a scene's data band could not be read.
	// Recoverable: the scene is dropped and the run continues.
	ErrDataUnavailable = errors.New("scene data unavailable")

	// ErrQualityUnavailable means a quality band exists but could not be used.
	// Recoverable: the scene is treated as fully valid.
	ErrQualityUnavailable = errors.New("scene quality band unavailable")

	// ErrPanUnavailable means the sharpening companion band could not be read.
	ErrPanUnavailable = errors.New("scene panchromatic band unavailable")
)

// Handle gives lazy, memoized access to one scene's bands. Each band is read
// on first request and cached for the rest of the run; failed reads are not
// cached, so a load abandoned by cancellation can be retried. Returned grids
// are shared with the cache and must be treated as read-only.
type Handle struct {
	desc   Descriptor
	opener raster.Opener

	mu      sync.Mutex
	data    *raster.Grid
	quality *raster.Grid
	pan     *raster.Grid
}

// NewHandle creates a handle for desc reading through opener.
func NewHandle(desc Descriptor, opener raster.Opener) *Handle {
	return &Handle{desc: desc, opener: opener}
}

// Descriptor returns the scene's catalog record.
func (h *Handle) Descriptor() Descriptor { return h.desc }

// ID returns the scene identifier.
func (h *Handle) ID() string { return h.desc.ID }

// LoadData returns the data band at its native grid.
func (h *Handle) LoadData(ctx context.Context) (*raster.Grid, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadDataLocked(ctx)
}

func (h *Handle) loadDataLocked(ctx context.Context) (*raster.Grid, error) {
	if h.data != nil {
		return h.data, nil
	}
	g, err := h.opener.Open(ctx, h.desc.DataLocator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, h.desc.ID, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, h.desc.ID, err)
	}
	h.data = g
	return g, nil
}

// LoadQuality returns the quality band, or nil with no error when the
// descriptor has no quality locator. The band must sit on the same native
// grid as the data band; a read failure or misaligned band is reported as
// ErrQualityUnavailable. A data band failure is reported as such.
func (h *Handle) LoadQuality(ctx context.Context) (*raster.Grid, error) {
	if !h.desc.HasQuality() {
		return nil, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.quality != nil {
		return h.quality, nil
	}
	data, err := h.loadDataLocked(ctx)
	if err != nil {
		return nil, err
	}
	q, err := h.opener.Open(ctx, h.desc.QualityLocator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQualityUnavailable, h.desc.ID, err)
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQualityUnavailable, h.desc.ID, err)
	}
	if err := data.SameGrid(q); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrQualityUnavailable, h.desc.ID, err)
	}
	h.quality = q
	return q, nil
}

// LoadPan returns the sharpening companion band, or nil with no error when
// the descriptor has none. It may be on a finer grid than the data band.
func (h *Handle) LoadPan(ctx context.Context) (*raster.Grid, error) {
	if h.desc.PanLocator == "" {
		return nil, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pan != nil {
		return h.pan, nil
	}
	p, err := h.opener.Open(ctx, h.desc.PanLocator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPanUnavailable, h.desc.ID, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPanUnavailable, h.desc.ID, err)
	}
	h.pan = p
	return p, nil
}
