// Package errors provides the error handling system for the parley prompt service.
// It includes structured error types, JSON response formatting, request ID tracking,
// and integrated logging with Uber's zap logger.
//
// Every failure in parley bubbles up to the HTTP layer unchanged and is written
// once, as a typed JSON body:
//
//	{"type": "parse_error", "message": "...", "request_id": "...", "details": {...}}
//
// Basic usage:
//
//	// Simple error response
//	errors.Error(w, "Something went wrong", http.StatusBadRequest)
//
//	// Type-specific error
//	errors.ErrorWithType(w, "Invalid input", errors.ValidationError, http.StatusBadRequest)
//
// For domain failures use the constructors in types.go:
//
//	errors.WriteError(w, errors.NewParseError(requestID, "list", err))
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// A nil logger is ignored.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType categorizes failures for clients. Each type maps onto one
// failure class of the prompt pipeline.
type ErrorType string

const (
	// ValidationError represents input validation failures
	ValidationError ErrorType = "validation_error"

	// InternalError represents unexpected internal server errors
	InternalError ErrorType = "internal_error"

	// ConfigError represents configuration-related errors
	ConfigError ErrorType = "config_error"

	// ResourceNotFoundError is a bundled prompt asset that could not be read
	ResourceNotFoundError ErrorType = "resource_not_found"

	// MissingVariableError is a template placeholder without a value
	MissingVariableError ErrorType = "missing_variable"

	// ProviderError represents errors from the language-model client
	ProviderError ErrorType = "provider_error"

	// ParseError is a model reply that does not match the negotiated format
	ParseError ErrorType = "parse_error"

	// TimeoutError is a request that ran past its deadline
	TimeoutError ErrorType = "timeout_error"

	// RateLimitError represents rate limiting errors
	RateLimitError ErrorType = "rate_limit_error"

	// QueueFullError is a request rejected by the admission queue
	QueueFullError ErrorType = "queue_full"

	// NotFoundError represents unknown routes
	NotFoundError ErrorType = "not_found"
)

// APIError is the error type written to clients. It implements the error
// interface and keeps the underlying cause for logging while only the
// public fields are serialized.
type APIError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	// err is the underlying error (not exposed in JSON)
	err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.err
}

// Is matches on Type only, so errors.Is(err, &APIError{Type: ParseError})
// works regardless of message or request.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError writes an APIError as JSON with its status code.
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
}

// Error is a drop-in replacement for http.Error that writes an APIError with
// the InternalError type. The request ID is taken from the response headers.
func Error(w http.ResponseWriter, message string, code int) {
	ErrorWithType(w, message, InternalError, code)
}

// ErrorWithType is like Error but allows specifying the error type.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	requestID := w.Header().Get("X-Request-ID")
	err := &APIError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	}
	WriteError(w, err)
}
