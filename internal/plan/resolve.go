package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/pipeforge/pipeforged/internal/errs"
	"github.com/pipeforge/pipeforged/internal/manifest"
	"github.com/pipeforge/pipeforged/internal/store"
)

// inputIdentifier hashes a single named Input's type, origin, and
// reference list into one identifier string for use in
// identifierInput.Inputs. References are hashed in their written order
// when the input is Ordered (array form) and in sorted order otherwise
// (object form), which is what makes Testable Property 6 hold: swapping
// two references changes the identifier only for an ordered input.
func inputIdentifier(in manifest.Input, upstreamBuildID *store.ObjectID) (string, error) {
	refs := in.References.Canonical()

	// A pipeline-origin reference names the enclosing pipeline's own
	// build pipeline; its identifier is that build pipeline's final
	// object id, not the literal string "build".
	if in.Origin == manifest.OriginPipeline {
		if upstreamBuildID == nil {
			return "", errs.Wrapf(ErrUnresolvedInput, "input of type %q references build pipeline with no build stage", in.Type)
		}
		refs = []string{string(*upstreamBuildID)}
	}

	payload := struct {
		Type    string   `json:"type"`
		Origin  string   `json:"origin"`
		Ordered bool     `json:"ordered"`
		Refs    []string `json:"refs"`
	}{
		Type:    in.Type,
		Origin:  in.Origin,
		Ordered: in.References.Ordered,
		Refs:    refs,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// resolveStageInputs returns the sorted list of per-input identifiers
// for a stage's named Inputs map, feeding computeIdentifier's
// sorted(input-ids) term.
func resolveStageInputs(stage manifest.Stage, upstreamBuildID *store.ObjectID) ([]string, error) {
	ids := make([]string, 0, len(stage.Inputs))
	for _, in := range stage.Inputs {
		id, err := inputIdentifier(in, upstreamBuildID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
