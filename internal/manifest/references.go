package manifest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/pipeforge/pipeforged/internal/errs"
)

// metadataKeyPattern matches the required shape of a reference metadata
// key, e.g. "rpm.check_gpg" (§6).
var metadataKeyPattern = regexp.MustCompile(`^\w+\.\w+$`)

// UnmarshalJSON accepts either an ordered array of hash strings or an
// object whose keys are hashes and whose values carry per-reference
// metadata (§6).
func (r *References) UnmarshalJSON(data []byte) error {
	var asArray []string
	if err := json.Unmarshal(data, &asArray); err == nil {
		items := make([]Reference, len(asArray))
		for i, ref := range asArray {
			items[i] = Reference{Ref: ref}
		}
		r.Ordered = true
		r.Items = items
		return nil
	}

	var asObject map[string]struct {
		Metadata map[string]json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(data, &asObject); err != nil {
		return errs.Wrapf(ErrManifestInvalid, "references: %w", err)
	}

	keys := make([]string, 0, len(asObject))
	for k := range asObject {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]Reference, 0, len(keys))
	for _, k := range keys {
		for metaKey := range asObject[k].Metadata {
			if !metadataKeyPattern.MatchString(metaKey) {
				return errs.Wrapf(ErrManifestInvalid, "reference %q: metadata key %q must match %s", k, metaKey, metadataKeyPattern)
			}
		}
		items = append(items, Reference{Ref: k, Metadata: asObject[k].Metadata})
	}

	r.Ordered = false
	r.Items = items
	return nil
}

// MarshalJSON re-emits the form the references were decoded in, so that
// re-serializing a parsed manifest round-trips its ordering semantics.
func (r References) MarshalJSON() ([]byte, error) {
	if r.Ordered {
		refs := make([]string, len(r.Items))
		for i, it := range r.Items {
			refs[i] = it.Ref
		}
		return json.Marshal(refs)
	}

	nested := make(map[string]struct {
		Metadata map[string]json.RawMessage `json:"metadata,omitempty"`
	}, len(r.Items))
	for _, it := range r.Items {
		nested[it.Ref] = struct {
			Metadata map[string]json.RawMessage `json:"metadata,omitempty"`
		}{Metadata: it.Metadata}
	}
	return json.Marshal(nested)
}

// Canonical returns the reference strings in the order that should feed
// the object-identifier hash: as written when Ordered, sorted otherwise.
func (r References) Canonical() []string {
	out := make([]string, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Ref
	}
	if !r.Ordered {
		sort.Strings(out)
	}
	return out
}

func (r References) String() string {
	return fmt.Sprintf("%v", r.Canonical())
}
