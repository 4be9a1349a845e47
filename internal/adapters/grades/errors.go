package grades

import "errors"

// ErrMalformed marks an input file that cannot be decoded.
var ErrMalformed = errors.New("malformed grade input")
