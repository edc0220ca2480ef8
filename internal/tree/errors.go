package tree

import "errors"

// Sentinel errors for everything the engine can refuse to do. Callers
// classify with errors.Is; messages carry the offending ids or indices.
var (
	ErrInvalidDocument  = errors.New("invalid document")
	ErrNotFound         = errors.New("node not found")
	ErrDuplicateID      = errors.New("duplicate node id")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrOutOfRange       = errors.New("branch index out of range")
)
