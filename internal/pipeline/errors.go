package pipeline

import (
	"errors"
	"fmt"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fusion"
)

var (
	// ErrDiscovery wraps catalog failures; the run aborts.
	ErrDiscovery = errors.New("scene discovery failed")
	// ErrExport wraps output write failures; the run aborts.
	ErrExport = errors.New("export failed")
)

// EmptyCause says why no scene reached fusion.
type EmptyCause int

const (
	CauseNoScenesDiscovered EmptyCause = iota
	CauseAllDroppedByQuality
	CauseAllFailedLoad
	CauseAllFailedNormalization
	// CauseNoSurvivors covers a mix of drop reasons.
	CauseNoSurvivors
)

func (c EmptyCause) String() string {
	switch c {
	case CauseNoScenesDiscovered:
		return "no scenes discovered"
	case CauseAllDroppedByQuality:
		return "all scenes dropped by quality filter"
	case CauseAllFailedLoad:
		return "all scenes failed to load"
	case CauseAllFailedNormalization:
		return "all scenes failed normalization"
	default:
		return "no scenes survived"
	}
}

// EmptyInputError aborts a run that has nothing to fuse. It unwraps to
// fusion.ErrEmptyInput.
type EmptyInputError struct {
	Cause      EmptyCause
	Discovered int
}

func (e *EmptyInputError) Error() string {
	if e.Cause == CauseNoScenesDiscovered {
		return fmt.Sprintf("%v: %s", fusion.ErrEmptyInput, e.Cause)
	}
	return fmt.Sprintf("%v: %s (%d discovered)", fusion.ErrEmptyInput, e.Cause, e.Discovered)
}

func (e *EmptyInputError) Unwrap() error { return fusion.ErrEmptyInput }

// emptyCause classifies a run in which no scene survived normalization.
func emptyCause(r *Report) EmptyCause {
	switch r.Discovered {
	case 0:
		return CauseNoScenesDiscovered
	case r.DroppedQuality:
		return CauseAllDroppedByQuality
	case r.DroppedLoad:
		return CauseAllFailedLoad
	case r.DroppedNormalize:
		return CauseAllFailedNormalization
	}
	return CauseNoSurvivors
}
