package errors

import (
	"net/http"
)

// NewError creates a new APIError with full control over its fields.
// Prefer the specialized constructors below.
//
// Example:
//
//	err := NewError(InternalError, "encode failed", 500, "req_123", nil, encErr)
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *APIError {
	return &APIError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewValidationError creates a validation error for bad request input, such as:
//   - Malformed JSON bodies
//   - Missing required fields
//   - Value constraint violations
//
// Example:
//
//	err := NewValidationError("req_123", "Invalid request body", map[string]interface{}{
//	    "field": "topic",
//	    "error": "required",
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *APIError {
	return &APIError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewResourceNotFoundError reports a prompt asset that could not be loaded.
// This is a deployment problem, so it surfaces as a 500.
func NewResourceNotFoundError(requestID, path string, err error) *APIError {
	return &APIError{
		Type:      ResourceNotFoundError,
		Message:   "Prompt resource not found",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		Details: map[string]interface{}{
			"resource": path,
		},
		err: err,
	}
}

// NewMissingVariableError reports template placeholders that had no value.
func NewMissingVariableError(requestID string, names []string, err error) *APIError {
	return &APIError{
		Type:      MissingVariableError,
		Message:   "Prompt template has unfilled placeholders",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		Details: map[string]interface{}{
			"missing": names,
		},
		err: err,
	}
}

// NewRateLimitError creates a rate limit error.
//
// Example:
//
//	err := NewRateLimitError("req_123", 30)
func NewRateLimitError(requestID string, retryAfter int) *APIError {
	return &APIError{
		Type:      RateLimitError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewProviderError creates a provider error for failures of the
// language-model client (auth, quota, network). The provider error is
// kept as the cause and never retried.
//
// Example:
//
//	err := NewProviderError("req_123", "Failed to generate completion", providerErr)
func NewProviderError(requestID string, message string, err error) *APIError {
	return &APIError{
		Type:      ProviderError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewParseError reports a model reply that did not match the expected shape.
func NewParseError(requestID, shape string, err error) *APIError {
	return &APIError{
		Type:      ParseError,
		Message:   "Model response did not match the requested format",
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		Details: map[string]interface{}{
			"shape": shape,
		},
		err: err,
	}
}

// NewTimeoutError reports a request that exceeded its deadline.
func NewTimeoutError(requestID string, err error) *APIError {
	return &APIError{
		Type:      TimeoutError,
		Message:   "Request timeout",
		Code:      http.StatusGatewayTimeout,
		RequestID: requestID,
		err:       err,
	}
}

// NewInternalError creates an internal server error for anything not
// covered by the other types (panics, encoding failures).
//
// Example:
//
//	err := NewInternalError("req_123", encErr)
func NewInternalError(requestID string, err error) *APIError {
	return &APIError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// NewQueueFullError reports a request rejected because the admission queue
// is at capacity.
func NewQueueFullError(requestID string, maxSize int64) *APIError {
	return &APIError{
		Type:      QueueFullError,
		Message:   "Queue is full",
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		Details: map[string]interface{}{
			"max_size": maxSize,
		},
	}
}
