// Package sources implements the Sources module (§4.2): running
// sandboxed fetcher programs to populate content-addressed blobs in
// the object store.
//
// A fetcher is an ordinary sandboxed program, launched the same way a
// stage is (internal/sandbox), but with a fixed stdin/stdout contract
// instead of the Host API: stdin carries a JSON request of
// {items, options, checksums, cache, output}, and on success the
// fetcher writes {} (or type-specific metadata) to stdout. On failure
// it writes {"error": "..."} and exits non-zero. Whatever it claims,
// the engine always re-verifies that every requested hash is present
// and correct under output/ before trusting the fetch (§4.2,
// invariant 4: "source integrity").
package sources
