package errors

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorHandler wraps an http.Handler and turns panics into internal errors.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					stack := debug.Stack()
					requestID := w.Header().Get("X-Request-ID")
					logger.Error("panic recovered",
						zap.Any("error", err),
						zap.ByteString("stacktrace", stack),
						zap.String("request_id", requestID),
					)

					WriteError(w, NewInternalError(requestID, nil))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// LogError logs an error with its context
func LogError(logger *zap.Logger, err error, requestID string) {
	var apiErr *APIError
	if As(err, &apiErr) {
		fields := []zap.Field{
			zap.String("error_type", string(apiErr.Type)),
			zap.String("message", apiErr.Message),
			zap.Int("code", apiErr.Code),
			zap.String("request_id", requestID),
			zap.Any("details", apiErr.Details),
		}
		if cause := apiErr.Unwrap(); cause != nil {
			fields = append(fields, zap.Error(cause))
		}
		logger.Error("request error", fields...)
		return
	}
	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
