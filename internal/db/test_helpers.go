package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
)

// setupTestDB opens a migrated database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenAndMigrate(filepath.Join(t.TempDir(), "scenes.db"))
	if err != nil {
		t.Fatalf("OpenAndMigrate failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// setupUnmigratedDB opens a database without applying any migration.
func setupUnmigratedDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "bare.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func day(d int) time.Time {
	return time.Date(2025, time.July, d, 18, 0, 0, 0, time.UTC)
}

func testScene(id string, sensor scene.SensorClass, acquired time.Time) scene.Descriptor {
	return scene.Descriptor{
		ID:               id,
		Sensor:           sensor,
		DataLocator:      "file:///data/" + id + ".asc",
		QualityLocator:   "file:///data/" + id + "_qa.asc",
		Acquired:         acquired,
		NativeResolution: 70,
		NativeCRS:        "EPSG:32612",
		Footprint:        orb.Bound{Min: orb.Point{-111.5, 40.5}, Max: orb.Point{-111.0, 41.0}},
	}
}
