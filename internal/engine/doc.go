// Package engine is the top-level executor (§5): it drives a compiled
// Plan's invocations against the object store, sandbox, host API, and
// sources, in order, caching by identifier and stopping a pipeline's
// remainder on the first stage failure while keeping everything
// already committed.
//
// Stage and assembler programs are resolved in one of two ways: if
// <libdir>/stages/<name> (or .../assemblers/<name>) exists, it is run
// as an external sandboxed program talking to the Host API, the
// general mechanism §4 describes. If no such program exists, the
// engine falls back to a small built-in registry (internal/engine's
// builtin.go) of primitive tree operations, the same role osbuild's
// own bundled Python stages play for the reference implementation —
// this is what lets the testable properties in §8 (S1, S3, S4, S6) run
// against nothing but this module's own code.
package engine
