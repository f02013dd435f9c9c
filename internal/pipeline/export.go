package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/db"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/preview"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/units"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/version"
)

// export writes the fused grid and its sidecar, then the optional preview.
// Only the raster write can fail the run.
func (o *Orchestrator) export(ctx context.Context, fused *raster.Grid, rep *Report) error {
	s := o.Settings
	out := fused.Clone()
	units.ConvertSlice(out.Data, s.OutputUnits)

	opts := raster.WriteOptions{
		Format:       raster.FormatASCIIGrid,
		NoData:       s.NoData,
		NoDataSet:    true,
		Units:        s.OutputUnits,
		WriteSidecar: true,
		Attributes:   provenance(rep, s.OutputUnits),
	}
	if err := o.IO.Write(ctx, out, s.Out, opts); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrExport, s.Out, err)
	}
	rep.OutputPath = s.Out
	opsf("run %s: wrote %s", rep.RunID, s.Out)

	if s.PreviewPath != "" {
		fs := o.FS
		if fs == nil {
			fs = fsutil.OSFileSystem{}
		}
		err := preview.Write(fs, s.PreviewPath, out, preview.Options{
			Title: fmt.Sprintf("Fused LST %s", s.Window.Start.Format("2006-01-02")),
			Units: s.OutputUnits,
		})
		if err != nil {
			opsf("run %s: preview not written: %v", rep.RunID, err)
		} else {
			diagf("run %s: preview %s", rep.RunID, s.PreviewPath)
		}
	}
	return nil
}

// provenance is the sidecar attribute set describing how the output was made.
func provenance(rep *Report, outputUnits string) map[string]any {
	contributors := make([]map[string]any, len(rep.Contributors))
	weights := make(map[string]float64, len(rep.Contributors))
	for i, c := range rep.Contributors {
		contributors[i] = map[string]any{
			"scene_id":      c.SceneID,
			"sensor":        string(c.Sensor),
			"acquired":      c.Acquired.UTC().Format(time.RFC3339),
			"cloud_percent": c.CloudPercent,
			"weight":        c.Weight,
		}
		weights[c.SceneID] = c.Weight
	}
	return map[string]any{
		"run_id":            rep.RunID,
		"fusion_policy":     string(rep.Policy),
		"contributors":      contributors,
		"weights":           weights,
		"scenes_discovered": rep.Discovered,
		"scenes_dropped": map[string]int{
			string(DropQuality):   rep.DroppedQuality,
			string(DropLoad):      rep.DroppedLoad,
			string(DropNormalize): rep.DroppedNormalize,
		},
		"target_crs":        rep.Target.CRS,
		"target_resolution": rep.Target.Resolution,
		"stats_kelvin":      rep.Stats,
		"output_units":      outputUnits,
		"generated_at":      rep.Started.UTC().Format(time.RFC3339),
		"software_version":  version.String(),
	}
}

// runRecord maps a report onto the provenance row.
func runRecord(rep *Report) *db.RunRecord {
	rec := &db.RunRecord{
		ID:               rep.RunID,
		StartedAt:        rep.Started,
		FinishedAt:       rep.Finished,
		FinalState:       rep.State.String(),
		Policy:           string(rep.Policy),
		OutputPath:       rep.OutputPath,
		Discovered:       rep.Discovered,
		DroppedQuality:   rep.DroppedQuality,
		DroppedLoad:      rep.DroppedLoad,
		DroppedNormalize: rep.DroppedNormalize,
		Fused:            rep.Fused,
		BuildVersion:     version.Version,
	}
	if rep.Err != nil {
		rec.Error = rep.Err.Error()
	}
	for _, c := range rep.Contributors {
		rec.Contributors = append(rec.Contributors, db.RunContributor{
			SceneID:      c.SceneID,
			Sensor:       string(c.Sensor),
			Acquired:     c.Acquired,
			CloudPercent: c.CloudPercent,
			Weight:       c.Weight,
		})
	}
	return rec
}
