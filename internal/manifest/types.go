package manifest

import "encoding/json"

// Origin names the source of an Input's references.
const (
	OriginSource   = "org.pipeforge.source"
	OriginPipeline = "org.pipeforge.pipeline"
)

// BuildPipelineRef is the only valid reference value for an
// org.pipeforge.pipeline input: it names the enclosing Pipeline's own
// "build" pipeline, per the build-pipeline-chain model §6's grammar
// supports (a single nested "build" field, not a named multi-pipeline
// graph). This resolves an Open Question left by spec.md: how
// pipeline-origin inputs identify which other pipeline they consume.
const BuildPipelineRef = "build"

// Manifest is the top-level document (§6).
type Manifest struct {
	Pipeline Pipeline                   `json:"pipeline"`
	Sources  map[string]json.RawMessage `json:"sources,omitempty"`
}

// Pipeline is a rooted sequence of stage invocations, optionally preceded
// by a build Pipeline whose final tree becomes the runtime root for this
// pipeline's own stages, and optionally terminated by an assembler.
type Pipeline struct {
	Build     *Pipeline `json:"build,omitempty"`
	Runner    string    `json:"runner,omitempty"`
	Stages    []Stage   `json:"stages"`
	Assembler *Stage    `json:"assembler,omitempty"`
}

// Stage is a single external-program invocation against a tree.
type Stage struct {
	Name    string           `json:"name"`
	Options json.RawMessage  `json:"options,omitempty"`
	Inputs  map[string]Input `json:"inputs,omitempty"`
}

// Input describes one named set of references a Stage consumes, either
// content-hashed source blobs or another pipeline's output tree.
type Input struct {
	Type       string     `json:"type"`
	Origin     string     `json:"origin"`
	References References `json:"references"`
}

// Reference is a single entry in an Input's reference list: a content hash
// (source origin) or BuildPipelineRef (pipeline origin), with optional
// per-reference metadata.
type Reference struct {
	Ref      string
	Metadata map[string]json.RawMessage
}

// References holds an Input's reference list along with whether it was
// written as an ordered JSON array (order is then meaningful — see
// Testable Property 6) or as an object keyed by reference (an unordered
// set; canonical identifier computation sorts references before hashing).
type References struct {
	Ordered bool
	Items   []Reference
}

// Len returns the number of references.
func (r References) Len() int { return len(r.Items) }
