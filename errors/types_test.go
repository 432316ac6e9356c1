package errors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("quota exceeded")

	tests := []struct {
		name        string
		err         *APIError
		typ         ErrorType
		code        int
		wantDetails map[string]interface{}
		wantCause   bool
	}{
		{
			name:      "provider",
			err:       NewProviderError("req-1", "Failed to generate completion", cause),
			typ:       ProviderError,
			code:      http.StatusBadGateway,
			wantCause: true,
		},
		{
			name:        "validation",
			err:         NewValidationError("req-1", "invalid input", map[string]interface{}{"field": "count", "error": "max"}),
			typ:         ValidationError,
			code:        http.StatusBadRequest,
			wantDetails: map[string]interface{}{"field": "count", "error": "max"},
		},
		{
			name:        "rate limit",
			err:         NewRateLimitError("req-1", 60),
			typ:         RateLimitError,
			code:        http.StatusTooManyRequests,
			wantDetails: map[string]interface{}{"retry_after": 60},
		},
		{
			name:        "queue full",
			err:         NewQueueFullError("req-1", 10),
			typ:         QueueFullError,
			code:        http.StatusServiceUnavailable,
			wantDetails: map[string]interface{}{"max_size": int64(10)},
		},
		{
			name:        "resource",
			err:         NewResourceNotFoundError("req-1", "prompts/x.st", cause),
			typ:         ResourceNotFoundError,
			code:        http.StatusInternalServerError,
			wantDetails: map[string]interface{}{"resource": "prompts/x.st"},
			wantCause:   true,
		},
		{
			name:        "missing variable",
			err:         NewMissingVariableError("req-1", []string{"topic"}, cause),
			typ:         MissingVariableError,
			code:        http.StatusInternalServerError,
			wantDetails: map[string]interface{}{"missing": []string{"topic"}},
			wantCause:   true,
		},
		{
			name:        "parse",
			err:         NewParseError("req-1", "record Tweet", cause),
			typ:         ParseError,
			code:        http.StatusBadGateway,
			wantDetails: map[string]interface{}{"shape": "record Tweet"},
			wantCause:   true,
		},
		{
			name:      "timeout",
			err:       NewTimeoutError("req-1", context.DeadlineExceeded),
			typ:       TimeoutError,
			code:      http.StatusGatewayTimeout,
			wantCause: true,
		},
		{
			name:      "internal",
			err:       NewInternalError("req-1", cause),
			typ:       InternalError,
			code:      http.StatusInternalServerError,
			wantCause: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, "req-1", tt.err.RequestID)
			assert.NotEmpty(t, tt.err.Message)
			for k, v := range tt.wantDetails {
				assert.Equal(t, v, tt.err.Details[k], k)
			}
			if tt.wantCause {
				assert.NotNil(t, tt.err.Unwrap())
			} else {
				assert.Nil(t, tt.err.Unwrap())
			}
		})
	}
}
