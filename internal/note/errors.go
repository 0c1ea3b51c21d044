package note

import "errors"

// Common errors.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("note not found")
	ErrForbidden          = errors.New("not allowed to edit this note")
	ErrInvalidOrExpired   = errors.New("invalid or expired share code")
	ErrShareCodeExhausted = errors.New("could not allocate a unique share code")
)

// errUnchanged aborts a mutation without writing.
var errUnchanged = errors.New("unchanged")
