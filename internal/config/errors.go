package config

import (
	"errors"
)

// Sentinel errors returned by Load and Validate; match with errors.Is.
var (
	// ErrInvalidConfig marks a value outside its allowed range or set.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a config file or env layer that could not be read.
	ErrLoadConfig = errors.New("load config failed")
)
