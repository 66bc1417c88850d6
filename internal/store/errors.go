package store

import "errors"

var (
	// ErrStorageFull is returned when a filesystem operation fails due to
	// insufficient space. Not retried by the engine (§7).
	ErrStorageFull = errors.New("storage full")

	// ErrStoreCorrupt is returned for permission or layout errors during
	// commit that indicate the store itself is damaged.
	ErrStoreCorrupt = errors.New("store corrupt")

	// ErrSourceInvalid is returned when a downloaded blob's content does
	// not hash to its claimed filename. The partial blob is deleted.
	ErrSourceInvalid = errors.New("source blob invalid")

	// ErrNotFound is returned by lookups (Ref on a missing ref, Snapshot of an
	// uncommitted id) that find nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidHash is returned when a content hash string does not match
	// the "<algo>:<hex>" grammar (§3).
	ErrInvalidHash = errors.New("invalid content hash")

	// ErrInvalidSnapshotter is returned by Hint for a strategy name that
	// isn't one of "reflink", "hardlink", or "deepcopy".
	ErrInvalidSnapshotter = errors.New("invalid snapshotter hint")
)
