package hostapi

import "encoding/json"

// ArgumentsRequest carries no fields; the response is the stage's own
// options and resolved input paths, the first thing a stage program
// asks for on startup.
type ArgumentsRequest struct{}

// ArgumentsResponse answers a KindArguments request.
type ArgumentsResponse struct {
	Options json.RawMessage    `json:"options"`
	Inputs  map[string]string  `json:"inputs"`
	Tree    string             `json:"tree"`
}

// MkdtempRequest asks the engine to allocate a scratch directory
// outside the sandbox's build tree, for large intermediate files a
// stage doesn't want to ship as part of its committed output.
type MkdtempRequest struct {
	Prefix string `json:"prefix"`
}

// MkdtempResponse returns the allocated directory's path as seen from
// inside the sandbox (it is bind mounted there by the executor).
type MkdtempResponse struct {
	Path string `json:"path"`
}

// SourceRequest asks for the on-disk path of a previously fetched
// source blob.
type SourceRequest struct {
	SourceType string `json:"source_type"`
	Hash       string `json:"hash"`
}

// SourceResponse returns the blob's path as seen from inside the
// sandbox.
type SourceResponse struct {
	Path string `json:"path"`
}

// MetadataRequest records a key/value pair about the stage's output
// tree, merged into the object's ObjectMeta on commit.
type MetadataRequest struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// LogRequest forwards one structured log line from the stage program
// to the engine's own logger.
type LogRequest struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ExceptionRequest reports an unrecoverable stage-program error,
// distinct from a non-zero exit: the stage is telling the engine why,
// before it exits.
type ExceptionRequest struct {
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// ErrorResponse is sent for any request the handler could not satisfy.
type ErrorResponse struct {
	Message string `json:"message"`
}
