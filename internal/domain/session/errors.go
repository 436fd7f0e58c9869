package session

import "errors"

// ErrInvalidUser indicates a zero user id.
var ErrInvalidUser = errors.New("invalid session user")
