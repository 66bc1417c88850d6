package manifest

import "errors"

var (
	// ErrManifestInvalid is the sentinel for every schema or structural
	// violation in a manifest: malformed JSON, an unrecognized stage,
	// input, or source type, or a legacy input envelope shape.
	ErrManifestInvalid = errors.New("manifest invalid")
)
