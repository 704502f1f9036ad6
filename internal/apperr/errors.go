// Package apperr defines the error taxonomy shared by the journal pipeline.
// Callers wrap these sentinels with fmt.Errorf("%w: ...") and match with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAuthentication  = errors.New("authentication required")
	ErrValidation      = errors.New("validation failed")
	ErrPersistence     = errors.New("persistence failure")
	ErrUpstream        = errors.New("upstream service failure")
	ErrEmptyGeneration = errors.New("no text generated")
)
