// Package errors provides error response utilities.
package errors

import (
	"errors"
)

// ErrorResponse is the decoded form of an error body, used by clients
// and tests that read responses back.
type ErrorResponse struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// As is a wrapper around errors.As so callers importing this package
// do not need the standard library one as well.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
