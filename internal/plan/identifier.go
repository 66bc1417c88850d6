package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/pipeforge/pipeforged/internal/store"
)

// identifierInput is the tuple that determines a stage invocation's
// object identifier (§3): stage name, canonical options, the sorted
// identifiers of every input reference it resolves to, and the upstream
// tree's identifier (the build pipeline's final identifier for the first
// stage of a pipeline that has one, null otherwise).
//
// encoding/json.Marshal sorts map keys when marshaling a map, which gives
// struct-free "canonical JSON" for free — no separate canonicalization
// library is needed the way it would be for, say, CBOR or protobuf.
type identifierInput struct {
	Stage    string   `json:"stage"`
	Options  any      `json:"options"`
	Inputs   []string `json:"inputs"`
	Upstream *string  `json:"upstream"`
}

// computeIdentifier hashes an identifierInput into a store.ObjectID of
// the form "sha256:<hex>", matching the store's content hash grammar so
// object identifiers and source blob hashes share one representation.
func computeIdentifier(stageName string, options json.RawMessage, inputIDs []string, upstream *store.ObjectID) (store.ObjectID, error) {
	var decodedOptions any
	if len(options) == 0 {
		decodedOptions = map[string]any{}
	} else if err := json.Unmarshal(options, &decodedOptions); err != nil {
		return "", err
	}

	sortedInputs := append([]string(nil), inputIDs...)
	sort.Strings(sortedInputs)

	var upstreamStr *string
	if upstream != nil {
		s := string(*upstream)
		upstreamStr = &s
	}

	payload := identifierInput{
		Stage:    stageName,
		Options:  decodedOptions,
		Inputs:   sortedInputs,
		Upstream: upstreamStr,
	}

	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return store.ObjectID("sha256:" + hex.EncodeToString(sum[:])), nil
}
