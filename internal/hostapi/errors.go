package hostapi

import "errors"

var (
	// ErrProtocol is returned for malformed frames (bad length prefix,
	// truncated body, invalid JSON envelope).
	ErrProtocol = errors.New("host api protocol error")

	// ErrUnknownKind is returned, in the response only, when a message's
	// Kind does not match any known handler.
	ErrUnknownKind = errors.New("unknown message kind")
)
