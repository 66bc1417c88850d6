// Package plan implements the Pipeline Planner (§5, §6): resolving a
// manifest into a deterministic object identifier for every stage, and
// the topologically-sorted sequence of (pipeline, stage) invocations the
// executor drives.
package plan
