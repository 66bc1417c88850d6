package engine

import "errors"

var (
	// ErrManifestInvalid surfaces a manifest that failed structural or
	// registry validation.
	ErrManifestInvalid = errors.New("manifest invalid")

	// ErrSourceUnavailable surfaces a fetcher failure or hash mismatch.
	// Fatal for the whole run (§7: "source failures abort before any
	// stage runs").
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrStageFailed surfaces a stage program exiting non-zero (carrying
	// its host API exception message, if it reported one) or a built-in
	// stage failing.
	ErrStageFailed = errors.New("stage failed")

	// ErrSandboxError surfaces a failure to even start a stage's
	// sandbox (containerd/mount-level), distinct from the stage
	// program itself failing.
	ErrSandboxError = errors.New("sandbox error")
)
