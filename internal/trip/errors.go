package trip

import "errors"

// Request-scoped error taxonomy. Callers recover by re-reading state and
// retrying, or surface the condition to the end user; none of these are
// fatal to the process.
var (
	ErrNotFound          = errors.New("trip not found")
	ErrNoDriverAvailable = errors.New("no driver available")
	ErrInvalidTransition = errors.New("invalid trip transition")
	ErrConflict          = errors.New("trip modified concurrently")
)
