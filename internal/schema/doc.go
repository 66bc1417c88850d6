// Package schema loads per-stage JSON Schema documents from a libdir and
// validates manifest stage options against them.
//
// Per §9: "Per-stage schemas are strings embedded alongside each stage
// program. The engine loads them as data at planner time; no dynamic code
// load." Schemas are loaded from <libdir>/stages/<name>.schema.json (and
// analogously for inputs and sources) and compiled once with
// github.com/santhosh-tekuri/jsonschema/v5, the same library opal/core uses
// to validate its own command definitions.
package schema
