package domain

import "errors"

// Error kinds returned by the tracking service. Callers classify with errors.Is;
// the wrapped message carries the entity kind and id.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrStorage    = errors.New("storage failure")
)

// Entity kinds used in error messages and events.
const (
	KindEntry = "entry"
	KindLine  = "line"
)
