package domain

import "errors"

// Error kinds surfaced by the storefront core. Callers classify failures
// with errors.Is; the wrapping message carries the offending id or field.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state")
)
