package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/aoi"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/db"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/testutil"
)

const testAOI = "POLYGON((-111.01 36.09, -110.99 36.09, -110.99 36.11, -111.01 36.11, -111.01 36.09))"

const testManifest = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": null, "properties": {
      "id": "LC09_A", "sensor": "LANDSAT", "data": "A.asc",
      "acquired": "2025-07-03T18:00:00Z", "native_resolution": 30}},
    {"type": "Feature", "geometry": null, "properties": {
      "id": "ECO_B", "sensor": "ECOSTRESS", "data": "B.asc", "quality": "B_qa.asc",
      "acquired": "2025-07-04T18:00:00Z", "native_resolution": 70}},
    {"type": "Feature", "geometry": null, "properties": {
      "id": "ECO_LATE", "sensor": "ECOSTRESS", "data": "B.asc",
      "acquired": "2025-09-01T18:00:00Z", "native_resolution": 70}}
  ]
}`

// stageScenes writes a clean Landsat scene and a cloudy ECOSTRESS scene plus
// a manifest into a temp dir and returns the manifest path.
func stageScenes(t *testing.T) (dir, manifest string) {
	t.Helper()
	dir = t.TempDir()
	area, err := aoi.ParseWKT(testAOI)
	require.NoError(t, err)
	target, err := aoi.Target(area, testutil.UTM12, 30)
	require.NoError(t, err)

	osfs := fsutil.OSFileSystem{}
	a := testutil.Grid(10, 10, 30, target.MinX+300, target.MaxY-300, testutil.Ramp(300))
	b := testutil.Grid(5, 4, 70, target.MinX+240, target.MaxY-240, testutil.Constant(350))
	testutil.WriteGrid(t, osfs, filepath.Join(dir, "A.asc"), a)
	testutil.WriteGrid(t, osfs, filepath.Join(dir, "B.asc"), b)
	testutil.WriteGrid(t, osfs, filepath.Join(dir, "B_qa.asc"), testutil.FlagFirst(b, 10))

	manifest = filepath.Join(dir, "scenes.geojson")
	require.NoError(t, os.WriteFile(manifest, []byte(testManifest), 0o644))
	return dir, manifest
}

func runFuse(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	t.Cleanup(func() { setupLogging(nil, false, false) })
	return code, out.String(), errOut.String()
}

func TestRun_FusesManifestScenes(t *testing.T) {
	dir, manifest := stageScenes(t)
	out := filepath.Join(dir, "out", "lst.asc")
	dbPath := filepath.Join(dir, "runs.db")
	metrics := filepath.Join(dir, "fusion.prom")

	code, stdout, stderr := runFuse(t,
		"-aoi", testAOI,
		"-start", "2025-07-01", "-end", "2025-07-31",
		"-out", out,
		"-catalog", manifest,
		"-target-crs", testutil.UTM12,
		"-max-cloud", "20",
		"-db", dbPath,
		"-metrics-textfile", metrics,
	)
	require.Equal(t, 0, code, "stderr: %s", stderr)

	assert.Contains(t, stdout, "2 scenes discovered")
	assert.Contains(t, stdout, "1 scene dropped by quality filter")
	assert.Contains(t, stdout, "1 scene fused (mean)")
	assert.Contains(t, stdout, "✓ Fusion complete → "+out)
	assert.Contains(t, stderr, "ECO_B", "quality drops go to the ops log")
	assert.FileExists(t, out)
	assert.FileExists(t, out+".json")

	database, err := db.Open(dbPath)
	require.NoError(t, err)
	defer database.Close()
	runs, err := database.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "done", runs[0].FinalState)
	assert.Equal(t, out, runs[0].OutputPath)

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "fusion_scenes_fused_total 1")
	assert.Contains(t, string(prom), `fusion_scenes_dropped_total{reason="quality"} 1`)
}

func TestRun_ConfigFileWithFlagOverride(t *testing.T) {
	dir, manifest := stageScenes(t)
	out := filepath.Join(dir, "lst.asc")
	cfg := filepath.Join(dir, "fusion.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(strings.Join([]string{
		"aoi: \"" + testAOI + "\"",
		"start: \"2025-07-01\"",
		"end: \"2025-07-31\"",
		"out: " + out,
		"catalog: " + manifest,
		"target_crs: " + testutil.UTM12,
		"max_cloud_percent: 20",
	}, "\n")), 0o644))

	// The file keeps the cloudy scene out; the flag lets it back in.
	code, stdout, stderr := runFuse(t, "-config", cfg, "-max-cloud", "80")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "2 scenes fused (mean)")
	assert.NotContains(t, stdout, "quality filter")
}

func TestRun_MissingRequiredFields(t *testing.T) {
	code, _, stderr := runFuse(t, "-start", "2025-07-01")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "aoi is required")
	assert.Contains(t, stderr, "end is required")
	assert.Contains(t, stderr, "out is required")
}

func TestRun_NoScenesInWindow(t *testing.T) {
	dir, manifest := stageScenes(t)
	code, stdout, stderr := runFuse(t,
		"-aoi", testAOI,
		"-start", "2024-01-01", "-end", "2024-01-31",
		"-out", filepath.Join(dir, "lst.asc"),
		"-catalog", manifest,
	)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "0 scenes discovered")
	assert.Contains(t, stderr, "no scenes discovered")
	assert.NoFileExists(t, filepath.Join(dir, "lst.asc"))
}

func TestRun_BadFlag(t *testing.T) {
	code, _, _ := runFuse(t, "-no-such-flag")
	assert.Equal(t, 2, code)
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runFuse(t, "-version")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout, "fuse dev"))
}

func TestOverlayOnlyCarriesSetFlags(t *testing.T) {
	var v flagValues
	fs := newFlagSet(&v, io.Discard)
	require.NoError(t, fs.Parse([]string{"-max-cloud", "10", "-cloud-mask=false", "-sensors", "LANDSAT, MODIS"}))

	c := overlay(fs, &v)
	require.NotNil(t, c.MaxCloudPercent)
	assert.Equal(t, 10.0, *c.MaxCloudPercent)
	require.NotNil(t, c.CloudMaskEnabled)
	assert.False(t, *c.CloudMaskEnabled)
	assert.Equal(t, []string{"LANDSAT", "MODIS"}, c.Sensors)

	assert.Nil(t, c.TargetResolution, "defaults must not override the config file")
	assert.Nil(t, c.FusionPolicy)
	assert.Nil(t, c.Workers)
}

func TestNewFlagSetHelp(t *testing.T) {
	var v flagValues
	var buf bytes.Buffer
	fs := newFlagSet(&v, &buf)
	err := fs.Parse([]string{"-h"})
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, buf.String(), "-target-resolution")
}
