// Package manifest decodes and validates the JSON pipeline manifest (§6).
//
// A Manifest is a tree of Pipelines; each Pipeline is an ordered list of
// Stages plus an optional nested build Pipeline and terminal Assembler.
// Decode performs structural validation only (well-formed shapes, the
// canonical input envelope, reference metadata key syntax); Validate checks
// stage/input/source type names against a registry of what the host
// actually has stage and source programs for, suggesting near-misses via
// fuzzy matching the way opal/runtime suggests corrected command names.
package manifest
