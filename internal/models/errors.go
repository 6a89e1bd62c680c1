package models

import "errors"

// Error taxonomy shared by the store, service and API layers.
// Callers wrap these with context and match them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrOutOfStock        = errors.New("out of stock")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnavailable       = errors.New("unavailable")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
)
