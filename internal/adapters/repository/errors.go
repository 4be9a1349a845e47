package repository

import "errors"

// Sentinel kinds for snapshot and run lookups.
var (
	ErrNotFound  = errors.New("not found")
	ErrNoRun     = errors.New("no reconciliation run recorded")
	ErrMalformed = errors.New("malformed snapshot")
)
