package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fusion"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
)

// DropReason classifies a per-scene failure.
type DropReason string

const (
	DropQuality   DropReason = "quality"
	DropLoad      DropReason = "load"
	DropNormalize DropReason = "normalize"
)

// Contributor describes one scene that entered fusion.
type Contributor struct {
	SceneID      string            `json:"scene_id"`
	Sensor       scene.SensorClass `json:"sensor"`
	Acquired     time.Time         `json:"acquired"`
	CloudPercent float64           `json:"cloud_percent"`
	Weight       float64           `json:"weight"`
}

// Dropped describes one scene removed before fusion.
type Dropped struct {
	SceneID string            `json:"scene_id"`
	Sensor  scene.SensorClass `json:"sensor"`
	Reason  DropReason        `json:"reason"`
	Detail  string            `json:"detail"`
}

// Report is the outcome of a run. It is populated even when the run aborts
// so the counts explain an empty or thin composite.
type Report struct {
	RunID      string
	State      State
	States     []State
	Policy     fusion.Policy
	Target     raster.TargetGrid
	OutputPath string
	Started    time.Time
	Finished   time.Time

	Discovered       int
	DroppedQuality   int
	DroppedLoad      int
	DroppedNormalize int
	Fused            int

	Contributors []Contributor
	Drops        []Dropped
	// Stats summarises the fused grid before unit conversion.
	Stats raster.Summary
	Err   error
}

func (r *Report) drop(d Dropped) {
	r.Drops = append(r.Drops, d)
	switch d.Reason {
	case DropQuality:
		r.DroppedQuality++
	case DropLoad:
		r.DroppedLoad++
	case DropNormalize:
		r.DroppedNormalize++
	}
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

func scenes(n int) string {
	if n == 1 {
		return "1 scene"
	}
	return fmt.Sprintf("%d scenes", n)
}

// Summary renders the counts in plain language, one fact per line. Drop
// lines appear only for reasons that occurred.
func (r *Report) Summary() string {
	lines := []string{scenes(r.Discovered) + " discovered"}
	if r.DroppedQuality > 0 {
		lines = append(lines, scenes(r.DroppedQuality)+" dropped by quality filter")
	}
	if r.DroppedLoad > 0 {
		lines = append(lines, scenes(r.DroppedLoad)+" dropped by load failure")
	}
	if r.DroppedNormalize > 0 {
		lines = append(lines, scenes(r.DroppedNormalize)+" dropped by normalization failure")
	}
	fused := scenes(r.Fused) + " fused"
	if r.Fused > 0 && r.Policy != "" {
		fused += " (" + string(r.Policy) + ")"
	}
	lines = append(lines, fused)
	if r.State == StateAborted && r.Err != nil {
		lines = append(lines, "run aborted: "+r.Err.Error())
	}
	return strings.Join(lines, "\n")
}
