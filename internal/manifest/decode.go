package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/pipeforge/pipeforged/internal/errs"
)

// Decode parses and structurally validates a manifest document.
//
// Structural validation covers well-formed JSON, the canonical input
// envelope (every Stage's Inputs is a {name: {type, origin, references}}
// map — no legacy shape is accepted, resolving the Open Question in §9),
// reference metadata key syntax, and Origin values. It does not check
// stage/input/source type names against what the host actually provides;
// call Validate for that once a Registry is available.
func Decode(data []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, errs.Wrapf(ErrManifestInvalid, "decode: %w", err)
	}

	if err := validateStructure(&m.Pipeline); err != nil {
		return nil, err
	}

	return &m, nil
}

func validateStructure(p *Pipeline) error {
	if p.Build != nil {
		if err := validateStructure(p.Build); err != nil {
			return err
		}
	}

	for i, stage := range p.Stages {
		if err := validateStage(stage); err != nil {
			return errs.Wrapf(ErrManifestInvalid, "stage %d (%q): %w", i, stage.Name, err)
		}
	}

	if p.Assembler != nil {
		if err := validateStage(*p.Assembler); err != nil {
			return errs.Wrapf(ErrManifestInvalid, "assembler (%q): %w", p.Assembler.Name, err)
		}
	}

	return nil
}

func validateStage(s Stage) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("stage name must not be empty")
	}

	for name, in := range s.Inputs {
		switch in.Origin {
		case OriginSource:
			// Any reference string is accepted structurally; source
			// existence is checked later, against the store.
		case OriginPipeline:
			for _, ref := range in.References.Items {
				if ref.Ref != BuildPipelineRef {
					return fmt.Errorf("input %q: pipeline-origin references must be %q, got %q", name, BuildPipelineRef, ref.Ref)
				}
			}
		default:
			return fmt.Errorf("input %q: unknown origin %q", name, in.Origin)
		}
	}

	return nil
}

// Registry names the stage, input, and source types the host actually has
// programs and schemas for (populated from libdir by the schema package).
type Registry struct {
	Stages  []string
	Inputs  []string
	Sources []string
}

// Validate checks every stage/input/source type referenced by the
// manifest against reg, returning ErrManifestInvalid with a "did you mean"
// suggestion for near-miss typos, the way opal/runtime corrects mistyped
// command names.
func Validate(m *Manifest, reg Registry) error {
	if err := validatePipelineTypes(&m.Pipeline, reg); err != nil {
		return err
	}

	for sourceType := range m.Sources {
		if !contains(reg.Sources, sourceType) {
			return unknownType(ErrManifestInvalid, "source", sourceType, reg.Sources)
		}
	}

	return nil
}

func validatePipelineTypes(p *Pipeline, reg Registry) error {
	if p.Build != nil {
		if err := validatePipelineTypes(p.Build, reg); err != nil {
			return err
		}
	}

	check := func(s Stage) error {
		if !contains(reg.Stages, s.Name) {
			return unknownType(ErrManifestInvalid, "stage", s.Name, reg.Stages)
		}
		for _, in := range s.Inputs {
			if !contains(reg.Inputs, in.Type) {
				return unknownType(ErrManifestInvalid, "input", in.Type, reg.Inputs)
			}
		}
		return nil
	}

	for _, stage := range p.Stages {
		if err := check(stage); err != nil {
			return err
		}
	}
	if p.Assembler != nil {
		if err := check(*p.Assembler); err != nil {
			return err
		}
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func unknownType(sentinel error, kind, got string, known []string) error {
	if suggestion := closest(got, known); suggestion != "" {
		return errs.Wrapf(sentinel, "unknown %s %q (did you mean %q?)", kind, got, suggestion)
	}
	return errs.Wrapf(sentinel, "unknown %s %q", kind, got)
}

// closest returns the known name with the smallest Levenshtein distance to
// got, or "" if none is within a reasonable typo distance.
func closest(got string, known []string) string {
	best := ""
	bestDist := -1
	for _, k := range known {
		d := fuzzy.LevenshteinDistance(got, k)
		if d > len(got)/2+1 {
			continue
		}
		if bestDist == -1 || d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}
