package handlers

import (
	"context"
	"net/http"

	"github.com/teilomillet/parley/converter"
	"github.com/teilomillet/parley/errors"
	"github.com/teilomillet/parley/prompt"
	"github.com/teilomillet/parley/server/provider"
	"github.com/teilomillet/parley/server/validation"
)

// classify maps a handler failure onto the API error it is reported as.
// It returns nil when the client cancelled the request, since there is
// nobody left to answer.
func classify(requestID string, err error) *errors.APIError {
	var apiErr *errors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		return errors.NewValidationError(requestID, verr.Message, verr.DetailsMap())
	}

	var missing *prompt.MissingVariableError
	if errors.As(err, &missing) {
		return errors.NewMissingVariableError(requestID, missing.Names, err)
	}

	var resErr *prompt.ResourceError
	if errors.As(err, &resErr) {
		return errors.NewResourceNotFoundError(requestID, resErr.Path, err)
	}

	var parseErr *converter.ParseError
	if errors.As(err, &parseErr) {
		return errors.NewParseError(requestID, parseErr.Shape, err)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.NewTimeoutError(requestID, err)
	case errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, provider.ErrProviderUnavailable):
		return errors.NewError(errors.ProviderError, "Language model provider unavailable",
			http.StatusServiceUnavailable, requestID, nil, err)
	case errors.Is(err, provider.ErrEmptyPrompt):
		return errors.NewInternalError(requestID, err)
	}

	return errors.NewProviderError(requestID, "Failed to generate completion", err)
}
