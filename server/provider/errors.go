package provider

import "errors"

var (
	// ErrProviderUnavailable is returned without calling the model while
	// the circuit breaker is open.
	ErrProviderUnavailable = errors.New("language model provider unavailable")

	// ErrEmptyPrompt is returned for a prompt without messages.
	ErrEmptyPrompt = errors.New("prompt has no messages")
)
