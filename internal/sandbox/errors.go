package sandbox

import "errors"

var (
	// ErrSandbox wraps any containerd- or mount-related failure that
	// prevents a stage from even starting (distinct from the stage
	// program itself exiting non-zero, which is ErrStageFailed).
	ErrSandbox = errors.New("sandbox error")

	// ErrStageFailed names a stage program that runs to completion but
	// exits non-zero. Run does not return it: it reports the exit code in
	// Result.ExitCode and leaves that judgement to the caller.
	ErrStageFailed = errors.New("stage failed")
)
