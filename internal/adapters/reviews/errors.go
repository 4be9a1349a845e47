package reviews

import "errors"

// Sentinel kinds for review fetching errors.
var (
	// ErrHTTPStatus is wrapped when the endpoint answers with a non-200 status.
	ErrHTTPStatus = errors.New("unexpected http status")
	// ErrResponse is wrapped when the response body is not the expected shape.
	ErrResponse = errors.New("unexpected response")
)
