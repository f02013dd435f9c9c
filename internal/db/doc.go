// Package db is the SQLite scene index and fusion run provenance store.
//
// Responsibilities: opening the database with the connection pragmas,
// applying the embedded schema migrations, upserting and searching scene
// descriptors, and recording one row per fusion run with its contributors.
// Key types: DB, SceneQuery, RunRecord.
//
// Dependency rule: db may depend on scene, never on catalog or pipeline.
package db
