// Package store implements the content-addressed Object Store (§4.1) and
// the Source blob area (§4.2).
//
// A Store is a directory with four subdirectories: objects/<id> for
// committed, read-only trees; refs/<name> for human-readable pointers to
// object identifiers; sources/<type>/<algo>/<hex> for content-addressed
// blobs (the file name is the hex digest alone, without the "<algo>:"
// prefix);
// and tmp/ for staged objects and scratch directories. Objects are born
// staged (writable, under tmp/) and become committed (read-only, under
// objects/) exactly once, idempotently, via Commit. Committed objects are
// exported as writable clones via Snapshot, which prefers a reflink clone
// (golang.org/x/sys/unix FICLONE) and falls back to a hardlinked copy, then
// a deep copy, caching which strategy the store's filesystem supports
// after the first probe (§4.1, §9).
package store
