package engine

import "github.com/hivemindhq/hivemind/internal/errs"

// Re-exported so callers of the engine package can write
// errors.Is(err, engine.ErrNotFound) without reaching into internal/errs
// themselves; the engine is the public-facing package, errs is the
// shared plumbing underneath it and internal/tasks.
var (
	ErrNotFound            = errs.ErrNotFound
	ErrNotOwner            = errs.ErrNotOwner
	ErrProviderUnavailable = errs.ErrProviderUnavailable
	ErrMalformedRequest    = errs.ErrMalformedRequest
	ErrWrongState          = errs.ErrWrongState
)

// StateError is an alias so existing type assertions against
// *engine.StateError continue to work.
type StateError = errs.StateError
