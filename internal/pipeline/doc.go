// Package pipeline sequences one fusion run.
//
// Responsibilities: the run state machine (Discovering, Filtering,
// Normalizing, Fusing, Exporting, Done, Aborted), per-scene fan-out with a
// barrier between stages, conversion of per-scene failures into counted
// drops, export of the fused grid with provenance, and the run Report.
// Key types: Orchestrator, State, Report, EmptyInputError.
//
// Dependency rule: pipeline is the only package that depends on catalog,
// quality, normalize and fusion together. Nothing in internal/ depends on
// pipeline.
package pipeline
