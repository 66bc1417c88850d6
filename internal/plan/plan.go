package plan

import (
	"encoding/json"

	"github.com/pipeforge/pipeforged/internal/manifest"
	"github.com/pipeforge/pipeforged/internal/store"
)

// Invocation is one resolved (pipeline, stage) tuple in execution order.
// Path identifies the invocation's pipeline by its nesting: an empty
// path is the manifest's top-level pipeline, and each element descends
// into that pipeline's build pipeline (§6's single-nesting grammar keeps
// this a simple depth counter, never branching).
type Invocation struct {
	Path        []int
	StageIndex  int
	StageName   string
	Options     json.RawMessage
	Inputs      map[string]manifest.Input
	ID          store.ObjectID
	UpstreamID  *store.ObjectID
	IsAssembler bool
}

// Plan is the fully resolved, topologically-sorted sequence of
// invocations for a manifest's pipeline tree, build pipelines first
// (§5's "Execution order").
type Plan struct {
	Invocations []Invocation
	// FinalID is the object identifier of the top-level pipeline's last
	// stage (or assembler, if present) — the pipeline's overall result.
	FinalID store.ObjectID
}

// Compile performs the planner's post-order walk (§5's "Manifest
// compilation"): for each pipeline, build pipelines are resolved first,
// then each stage's identifier is computed from its name, canonical
// options, resolved input identifiers, and the running upstream
// identifier.
func Compile(p manifest.Pipeline) (*Plan, error) {
	pl := &Plan{}
	finalID, err := compilePipeline(pl, p, nil)
	if err != nil {
		return nil, err
	}
	pl.FinalID = finalID
	return pl, nil
}

func compilePipeline(pl *Plan, p manifest.Pipeline, path []int) (store.ObjectID, error) {
	var buildID *store.ObjectID
	if p.Build != nil {
		id, err := compilePipeline(pl, *p.Build, append(append([]int(nil), path...), 0))
		if err != nil {
			return "", err
		}
		buildID = &id
	}

	var upstream *store.ObjectID
	if buildID != nil {
		upstream = buildID
	}

	stages := append([]manifest.Stage(nil), p.Stages...)
	if p.Assembler != nil {
		stages = append(stages, *p.Assembler)
	}

	for i, stage := range stages {
		inputIDs, err := resolveStageInputs(stage, buildID)
		if err != nil {
			return "", err
		}

		id, err := computeIdentifier(stage.Name, stage.Options, inputIDs, upstream)
		if err != nil {
			return "", err
		}

		pl.Invocations = append(pl.Invocations, Invocation{
			Path:        path,
			StageIndex:  i,
			StageName:   stage.Name,
			Options:     stage.Options,
			Inputs:      stage.Inputs,
			ID:          id,
			UpstreamID:  upstream,
			IsAssembler: p.Assembler != nil && i == len(stages)-1,
		})

		upstream = &id
	}

	if upstream == nil {
		return "", ErrEmptyPipeline
	}
	return *upstream, nil
}
