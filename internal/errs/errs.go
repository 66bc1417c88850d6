// Package errs provides lightweight error wrapping used across the engine.
//
// It reimplements the call shape of the teacher's sibling crex package
// (Wrap/Wrapf over a sentinel error via %w) as an in-module package, since
// crex itself is an unfetchable monorepo sibling with no source in the
// retrieval pack.
package errs

import "fmt"

// Wrap attaches context to err while preserving sentinel identity, so that
// errors.Is(result, sentinel) still succeeds.
func Wrap(sentinel, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrapf is like Wrap but formats an additional message, which may itself
// use %w to wrap a further error (both the sentinel and that error remain
// reachable via errors.Is/errors.As).
func Wrapf(sentinel error, format string, args ...any) error {
	inner := fmt.Errorf(format, args...)
	return fmt.Errorf("%w: %w", sentinel, inner)
}
