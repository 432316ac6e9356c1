// Package converter turns free-text model replies into structured values.
//
// A Converter both describes the shape it expects (Format, a natural-language
// instruction placed into the prompt under the "format" variable) and parses
// the reply back (Convert). Parsing is strict: a reply that does not match
// the shape yields a *ParseError and never a partial value.
package converter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// FormatKey is the template variable that receives the format description.
const FormatKey = "format"

// ErrParse is matched by every *ParseError.
var ErrParse = errors.New("response does not match expected format")

// Converter describes and parses one output shape.
type Converter[T any] interface {
	Format() string
	Convert(text string) (T, error)
}

// Negotiate returns a copy of vars with the converter's format description
// stored under FormatKey. The input map is not modified.
func Negotiate[T any](c Converter[T], vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	out[FormatKey] = c.Format()
	return out
}

// ParseError reports a reply that could not be converted.
type ParseError struct {
	Shape  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Shape, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Shape, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// codeBlockPattern matches a markdown code block with an optional language tag.
var codeBlockPattern = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\n?(.*?)\n?```$")

// stripFences removes a surrounding markdown code block, if any, and trims.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if m := codeBlockPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// objectText returns the reply with fences removed when it is a single
// brace-delimited value. Arrays and prose-wrapped JSON are rejected.
func objectText(text string) (string, bool) {
	raw := stripFences(text)
	if !strings.HasPrefix(raw, "{") || !strings.HasSuffix(raw, "}") {
		return raw, false
	}
	return raw, true
}
