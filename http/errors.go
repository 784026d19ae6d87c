package http

import "errors"

// ErrRequestTooLarge is returned when a request body exceeds MaxBodySize.
var ErrRequestTooLarge = errors.New("request body too large")
