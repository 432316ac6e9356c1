// Package validation checks request bodies and prompt sizes before any
// model call is made.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/teilomillet/parley/server/provider"
)

// MaxBodyBytes bounds every request body.
const MaxBodyBytes = 1 << 20

// ValidationErrorDetail describes one rejected field.
type ValidationErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Value   string `json:"value,omitempty"`
}

// Error is a rejected request. Handlers turn it into a 400 response.
type Error struct {
	Message string
	Details []ValidationErrorDetail
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Details[0].Message)
}

// DetailsMap renders the details for an API error body.
func (e *Error) DetailsMap() map[string]interface{} {
	if len(e.Details) == 0 {
		return nil
	}
	return map[string]interface{}{"errors": e.Details}
}

// Validator decodes and checks incoming requests.
type Validator struct {
	validate  *validator.Validate
	counter   *TokenCounter
	maxTokens int
}

// New returns a validator. counter may be nil to skip token checks.
func New(counter *TokenCounter, maxContextTokens int) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{
		validate:  v,
		counter:   counter,
		maxTokens: maxContextTokens,
	}
}

// DecodeJSON reads a JSON body into dst and runs struct validation.
func (v *Validator) DecodeJSON(r *http.Request, dst interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return &Error{
				Message: "Invalid Content-Type header",
				Details: []ValidationErrorDetail{{
					Field:   "header:Content-Type",
					Message: "Content-Type must be application/json",
					Code:    "invalid_content_type",
					Value:   ct,
				}},
			}
		}
	}

	data, err := readBody(r)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(dst); err != nil {
		return &Error{
			Message: "Invalid request format",
			Details: []ValidationErrorDetail{{
				Field:   "body",
				Message: err.Error(),
				Code:    "invalid_json",
			}},
		}
	}

	return v.Struct(dst)
}

// Struct validates a decoded value.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Message: "Request validation failed", Details: []ValidationErrorDetail{{
			Field: "body", Message: err.Error(), Code: "invalid",
		}}}
	}

	details := make([]ValidationErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, ValidationErrorDetail{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    fmt.Sprintf("%s_validation_failed", fe.Tag()),
			Value:   fmt.Sprintf("%v", fe.Value()),
		})
	}
	return &Error{Message: "Request validation failed", Details: details}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", fe.Field())
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("field '%s' failed '%s' validation", fe.Field(), fe.Tag())
	}
}

// ReadText reads a raw text body. Blank bodies are rejected.
func (v *Validator) ReadText(r *http.Request) (string, error) {
	data, err := readBody(r)
	if err != nil {
		return "", err
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", &Error{Message: "Request body must not be empty", Details: []ValidationErrorDetail{{
			Field: "body", Message: "body is required", Code: "required_validation_failed",
		}}}
	}
	return text, nil
}

// readBody reads the whole body. Bodies over MaxBodyBytes are rejected
// rather than cut, so no partial input reaches the model.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, &Error{Message: "Invalid request body", Details: []ValidationErrorDetail{{
			Field: "body", Message: err.Error(), Code: "unreadable_body",
		}}}
	}
	if len(data) > MaxBodyBytes {
		return nil, &Error{Message: "Request body too large", Details: []ValidationErrorDetail{{
			Field:   "body",
			Message: fmt.Sprintf("body exceeds %d bytes", MaxBodyBytes),
			Code:    "body_too_large",
			Value:   fmt.Sprintf("%d", MaxBodyBytes),
		}}}
	}
	return data, nil
}

// CheckPrompt enforces the context token budget when a counter is set.
func (v *Validator) CheckPrompt(p *provider.Prompt) error {
	if v.counter == nil {
		return nil
	}
	if err := v.counter.ValidatePrompt(p, v.maxTokens); err != nil {
		return &Error{Message: "Token limit exceeded", Details: []ValidationErrorDetail{{
			Field:   "prompt",
			Message: err.Error(),
			Code:    "token_limit_exceeded",
			Value:   fmt.Sprintf("%d", v.maxTokens),
		}}}
	}
	return nil
}
