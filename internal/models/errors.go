package models

import "errors"

var (
	// ErrValidation marks input that is missing a required field or carries an invalid value.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an operation on an id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBackend marks a failure of the underlying storage or record service.
	ErrBackend = errors.New("backend failure")
)
