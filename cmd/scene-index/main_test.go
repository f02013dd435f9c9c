package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifest = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-111.5,40.5],[-111.0,40.5],[-111.0,41.0],[-111.5,41.0],[-111.5,40.5]]]},
     "properties": {"id": "ECO_0710", "sensor": "ECOSTRESS", "data": "eco.asc", "quality": "eco_qa.asc",
                    "acquired": "2025-07-10T20:15:00Z", "native_resolution": 70}},
    {"type": "Feature", "geometry": null,
     "properties": {"id": "LC09_0712", "sensor": "LANDSAT", "data": "lc09.asc",
                    "acquired": "2025-07-12T18:02:00Z", "native_resolution": 30}},
    {"type": "Feature", "geometry": null,
     "properties": {"id": "MOD_0801", "sensor": "MODIS", "data": "mod.asc",
                    "acquired": "2025-08-01T18:30:00Z", "native_resolution": 1000}}
  ]
}`

func runIndex(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeManifest(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "scenes.geojson")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))
	return path
}

func TestIngestThenList(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")

	code, stdout, stderr := runIndex(t, "", "-db", dbPath, "ingest", writeManifest(t, dir))
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "✓ Ingested 3 scene(s); index holds 3")

	// Re-ingesting upserts rather than duplicating.
	code, stdout, _ = runIndex(t, "", "-db", dbPath, "ingest", writeManifest(t, dir))
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "index holds 3")

	code, stdout, _ = runIndex(t, "", "-db", dbPath, "list")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "3 scene(s)")
	assert.Less(t, strings.Index(stdout, "ECO_0710"), strings.Index(stdout, "LC09_0712"), "ordered by acquisition")
	assert.Contains(t, stdout, filepath.Join(dir, "eco.asc"), "relative locators resolve against the manifest")

	code, stdout, _ = runIndex(t, "", "-db", dbPath, "list", "-sensor", "landsat,modis", "-start", "2025-07-01", "-end", "2025-07-31")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "LC09_0712")
	assert.NotContains(t, stdout, "MOD_0801")
	assert.NotContains(t, stdout, "ECO_0710")
	assert.Contains(t, stdout, "1 scene(s)")
}

func TestListRequiresExistingIndex(t *testing.T) {
	code, _, stderr := runIndex(t, "", "-db", filepath.Join(t.TempDir(), "missing.db"), "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "does not exist")
}

func TestListRejectsUnmigratedIndex(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scenes.db")
	code, _, _ := runIndex(t, "", "-db", dbPath, "migrate", "status")
	require.Equal(t, 0, code)

	code, _, stderr := runIndex(t, "", "-db", dbPath, "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "migrate up")
}

func TestMigrateUpAndStatus(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scenes.db")

	code, stdout, stderr := runIndex(t, "", "-db", dbPath, "migrate", "up")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "All migrations applied")

	code, stdout, _ = runIndex(t, "", "-db", dbPath, "migrate", "status")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Current version: 2")
	assert.Contains(t, stdout, "Dirty: false")

	code, stdout, _ = runIndex(t, "", "-db", dbPath, "runs")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "RUN")
}

func TestMigrateForceDeclined(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scenes.db")
	code, stdout, _ := runIndex(t, "n\n", "-db", dbPath, "migrate", "force", "1")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Aborted")
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no command", nil, 2},
		{"unknown command", []string{"frobnicate"}, 2},
		{"ingest without manifest", []string{"ingest"}, 1},
		{"unknown migrate action", []string{"migrate", "sideways"}, 1},
		{"bad list flag", []string{"list", "-bogus"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-db", filepath.Join(t.TempDir(), "x.db")}, tt.args...)
			code, _, _ := runIndex(t, "", args...)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestHelpAndVersion(t *testing.T) {
	code, stdout, _ := runIndex(t, "", "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Usage: scene-index")

	code, stdout, _ = runIndex(t, "", "version")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout, "scene-index dev"))
}
