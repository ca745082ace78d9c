package apperrors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData is an early return, not a failure: there is not
	// enough history (or no active patterns) to analyze.
	ErrInsufficientData = errors.New("insufficient data")

	ErrUpstreamFailure   = errors.New("completion service failed")
	ErrMalformedResponse = errors.New("malformed completion response")
	ErrPersistence       = errors.New("persistence failure")
)
