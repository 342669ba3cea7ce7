package engine

import "errors"

// ErrNotFound is returned when a referenced template or attempt does not
// exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidRequest is returned for requests missing required fields.
var ErrInvalidRequest = errors.New("invalid request")
