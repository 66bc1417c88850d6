package plan

import "errors"

var (
	// ErrUnresolvedInput is returned when a pipeline-origin input
	// references a build pipeline that does not exist.
	ErrUnresolvedInput = errors.New("unresolved input")

	// ErrEmptyPipeline is returned when a pipeline has neither a build
	// pipeline nor any stages, and so resolves to no object at all.
	ErrEmptyPipeline = errors.New("empty pipeline")
)
