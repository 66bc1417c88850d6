// Package hostapi implements the Host API Server (§4): a per-stage-
// invocation Unix domain socket that the stage program inside the
// sandbox talks back to the engine over.
//
// Unlike the teacher daemon's client-facing protocol, which frames a
// single newline-delimited JSON request per connection, the host API
// is a long-lived, multi-message conversation with one sandboxed
// process: each message is framed with a 4-byte big-endian length
// prefix followed by that many bytes of JSON, so arbitrary payloads
// (including metadata blobs and log lines) never need escaping for
// newlines. Supported message kinds are "arguments", "store.mkdtemp",
// "store.source", "metadata", "log", and "exception" (§4). An unknown
// kind gets an error response without closing the connection, since a
// stage program may continue after an error on one call.
package hostapi
