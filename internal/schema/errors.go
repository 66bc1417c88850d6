package schema

import "errors"

var (
	ErrNotFound = errors.New("schema not found")
	ErrInvalid  = errors.New("options do not match schema")
)
