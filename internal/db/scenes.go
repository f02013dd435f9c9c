package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
)

// SceneQuery selects indexed scenes. Zero fields do not constrain the search.
type SceneQuery struct {
	// Bound is a WGS84 box; scenes without a stored footprint always match.
	Bound   orb.Bound
	Start   time.Time
	End     time.Time
	Sensors []scene.SensorClass
	Limit   int
}

// SceneStore persists scene descriptors for catalog searches.
type SceneStore interface {
	UpsertScenes(ctx context.Context, descs []scene.Descriptor) error
	SearchScenes(ctx context.Context, q SceneQuery) ([]scene.Descriptor, error)
}

var _ SceneStore = (*DB)(nil)

const upsertSceneSQL = `
	INSERT INTO scenes (
		scene_id, sensor, data_locator, quality_locator, pan_locator,
		acquired_unix_ns, native_resolution, native_crs,
		min_lon, min_lat, max_lon, max_lat
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(scene_id) DO UPDATE SET
		sensor = excluded.sensor,
		data_locator = excluded.data_locator,
		quality_locator = excluded.quality_locator,
		pan_locator = excluded.pan_locator,
		acquired_unix_ns = excluded.acquired_unix_ns,
		native_resolution = excluded.native_resolution,
		native_crs = excluded.native_crs,
		min_lon = excluded.min_lon,
		min_lat = excluded.min_lat,
		max_lon = excluded.max_lon,
		max_lat = excluded.max_lat,
		ingested_at = CURRENT_TIMESTAMP`

// UpsertScene inserts or replaces one descriptor.
func (db *DB) UpsertScene(ctx context.Context, d scene.Descriptor) error {
	return db.UpsertScenes(ctx, []scene.Descriptor{d})
}

// UpsertScenes inserts or replaces descriptors in a single transaction.
// Invalid descriptors abort the whole batch.
func (db *DB) UpsertScenes(ctx context.Context, descs []scene.Descriptor) error {
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return err
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSceneSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare scene upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range descs {
		minLon, minLat, maxLon, maxLat := footprintArgs(d)
		_, err := stmt.ExecContext(ctx,
			d.ID, string(d.Sensor), d.DataLocator, d.QualityLocator, d.PanLocator,
			d.Acquired.UTC().UnixNano(), d.NativeResolution, d.NativeCRS,
			minLon, minLat, maxLon, maxLat,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert scene %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

func footprintArgs(d scene.Descriptor) (minLon, minLat, maxLon, maxLat sql.NullFloat64) {
	if !d.HasFootprint() {
		return
	}
	return sql.NullFloat64{Float64: d.Footprint.Min.Lon(), Valid: true},
		sql.NullFloat64{Float64: d.Footprint.Min.Lat(), Valid: true},
		sql.NullFloat64{Float64: d.Footprint.Max.Lon(), Valid: true},
		sql.NullFloat64{Float64: d.Footprint.Max.Lat(), Valid: true}
}

// SearchScenes returns descriptors matching q ordered by acquisition time,
// then scene id.
func (db *DB) SearchScenes(ctx context.Context, q SceneQuery) ([]scene.Descriptor, error) {
	var (
		where []string
		args  []any
	)
	if !q.Start.IsZero() {
		where = append(where, "acquired_unix_ns >= ?")
		args = append(args, q.Start.UTC().UnixNano())
	}
	if !q.End.IsZero() {
		where = append(where, "acquired_unix_ns <= ?")
		args = append(args, q.End.UTC().UnixNano())
	}
	if len(q.Sensors) > 0 {
		marks := make([]string, len(q.Sensors))
		for i, s := range q.Sensors {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "sensor IN ("+strings.Join(marks, ", ")+")")
	}
	if q.Bound != (orb.Bound{}) {
		where = append(where, `(min_lon IS NULL OR
			(max_lon >= ? AND min_lon <= ? AND max_lat >= ? AND min_lat <= ?))`)
		args = append(args, q.Bound.Min.Lon(), q.Bound.Max.Lon(), q.Bound.Min.Lat(), q.Bound.Max.Lat())
	}

	query := `SELECT scene_id, sensor, data_locator, quality_locator, pan_locator,
		acquired_unix_ns, native_resolution, native_crs,
		min_lon, min_lat, max_lon, max_lat
		FROM scenes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY acquired_unix_ns, scene_id"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search scenes: %w", err)
	}
	defer rows.Close()

	var out []scene.Descriptor
	for rows.Next() {
		d, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scenes: %w", err)
	}
	return out, nil
}

// GetScene returns one descriptor by id, or ErrNotFound.
func (db *DB) GetScene(ctx context.Context, id string) (scene.Descriptor, error) {
	row := db.QueryRowContext(ctx, `SELECT scene_id, sensor, data_locator, quality_locator, pan_locator,
		acquired_unix_ns, native_resolution, native_crs,
		min_lon, min_lat, max_lon, max_lat
		FROM scenes WHERE scene_id = ?`, id)
	d, err := scanScene(row)
	if err == sql.ErrNoRows {
		return scene.Descriptor{}, fmt.Errorf("scene %s: %w", id, ErrNotFound)
	}
	return d, err
}

// DeleteScene removes a descriptor. Deleting a missing id is not an error.
func (db *DB) DeleteScene(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM scenes WHERE scene_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete scene %s: %w", id, err)
	}
	return nil
}

// CountScenes returns the number of indexed scenes per sensor.
func (db *DB) CountScenes(ctx context.Context) (map[scene.SensorClass]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT sensor, COUNT(*) FROM scenes GROUP BY sensor`)
	if err != nil {
		return nil, fmt.Errorf("failed to count scenes: %w", err)
	}
	defer rows.Close()

	counts := make(map[scene.SensorClass]int)
	for rows.Next() {
		var (
			sensor string
			n      int
		)
		if err := rows.Scan(&sensor, &n); err != nil {
			return nil, fmt.Errorf("failed to scan scene count: %w", err)
		}
		counts[scene.SensorClass(sensor)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScene(r rowScanner) (scene.Descriptor, error) {
	var (
		d                              scene.Descriptor
		sensor                         string
		acquired                       int64
		minLon, minLat, maxLon, maxLat sql.NullFloat64
	)
	err := r.Scan(&d.ID, &sensor, &d.DataLocator, &d.QualityLocator, &d.PanLocator,
		&acquired, &d.NativeResolution, &d.NativeCRS,
		&minLon, &minLat, &maxLon, &maxLat)
	if err == sql.ErrNoRows {
		return d, err
	}
	if err != nil {
		return d, fmt.Errorf("failed to scan scene: %w", err)
	}
	d.Sensor = scene.SensorClass(sensor)
	d.Acquired = time.Unix(0, acquired).UTC()
	if minLon.Valid && minLat.Valid && maxLon.Valid && maxLat.Valid {
		d.Footprint = orb.Bound{
			Min: orb.Point{minLon.Float64, minLat.Float64},
			Max: orb.Point{maxLon.Float64, maxLat.Float64},
		}
	}
	return d, nil
}
