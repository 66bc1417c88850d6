package assembler

import "errors"

// ErrAssemble wraps any failure while packaging a tree into an artifact.
var ErrAssemble = errors.New("assemble error")
