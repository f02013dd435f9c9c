package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunRecord is the provenance of one fusion run.
type RunRecord struct {
	// ID is assigned by RecordRun when empty.
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	FinalState       string
	Policy           string
	OutputPath       string
	Discovered       int
	DroppedQuality   int
	DroppedLoad      int
	DroppedNormalize int
	Fused            int
	Error            string
	BuildVersion     string
	Contributors     []RunContributor
}

// RunContributor is one scene that entered fusion, in fusion order.
type RunContributor struct {
	SceneID      string
	Sensor       string
	Acquired     time.Time
	CloudPercent float64
	Weight       float64
}

// RunStore persists fusion run provenance.
type RunStore interface {
	RecordRun(ctx context.Context, rec *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
}

var _ RunStore = (*DB)(nil)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RecordRun stores rec and its contributors atomically, assigning a UUID
// when rec.ID is empty.
func (db *DB) RecordRun(ctx context.Context, rec *RunRecord) error {
	if rec.ID == "" {
		rec.ID = NewRunID()
	} else if _, err := uuid.Parse(rec.ID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", rec.ID, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fusion_runs (
			run_id, started_unix_ns, finished_unix_ns, final_state, policy, output_path,
			discovered, dropped_quality, dropped_load, dropped_normalize, fused,
			error, build_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC().UnixNano(), rec.FinishedAt.UTC().UnixNano(),
		rec.FinalState, rec.Policy, rec.OutputPath,
		rec.Discovered, rec.DroppedQuality, rec.DroppedLoad, rec.DroppedNormalize, rec.Fused,
		rec.Error, rec.BuildVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rec.ID, err)
	}

	for i, c := range rec.Contributors {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fusion_run_contributors (
				run_id, position, scene_id, sensor, acquired_unix_ns, cloud_percent, weight
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, c.SceneID, c.Sensor, c.Acquired.UTC().UnixNano(), c.CloudPercent, c.Weight,
		)
		if err != nil {
			return fmt.Errorf("failed to insert contributor %s for run %s: %w", c.SceneID, rec.ID, err)
		}
	}
	return tx.Commit()
}

// GetRun loads a run and its contributors, or returns ErrNotFound.
func (db *DB) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	rec := &RunRecord{}
	var started, finished int64
	err := db.QueryRowContext(ctx, `
		SELECT run_id, started_unix_ns, finished_unix_ns, final_state, policy, output_path,
			discovered, dropped_quality, dropped_load, dropped_normalize, fused,
			error, build_version
		FROM fusion_runs WHERE run_id = ?`, id).Scan(
		&rec.ID, &started, &finished, &rec.FinalState, &rec.Policy, &rec.OutputPath,
		&rec.Discovered, &rec.DroppedQuality, &rec.DroppedLoad, &rec.DroppedNormalize, &rec.Fused,
		&rec.Error, &rec.BuildVersion,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	rec.StartedAt = time.Unix(0, started).UTC()
	rec.FinishedAt = time.Unix(0, finished).UTC()

	rows, err := db.QueryContext(ctx, `
		SELECT scene_id, sensor, acquired_unix_ns, cloud_percent, weight
		FROM fusion_run_contributors WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load contributors for run %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c        RunContributor
			acquired int64
		)
		if err := rows.Scan(&c.SceneID, &c.Sensor, &acquired, &c.CloudPercent, &c.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan contributor: %w", err)
		}
		c.Acquired = time.Unix(0, acquired).UTC()
		rec.Contributors = append(rec.Contributors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRuns returns the most recent runs first, without contributors.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, started_unix_ns, finished_unix_ns, final_state, policy, output_path, fused, error
		FROM fusion_runs ORDER BY started_unix_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r                 RunRecord
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.FinalState, &r.Policy, &r.OutputPath, &r.Fused, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.FinishedAt = time.Unix(0, finished).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
