package queue

import "errors"

// Sentinel kinds for queue consumers.
var (
	// ErrStopped is returned when the pool consuming the queue has shut down.
	ErrStopped = errors.New("scoring pool stopped")
)
