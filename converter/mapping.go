package converter

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

const mapFormat = "Your response should be in JSON format.\n" +
	"The JSON must be a single object whose keys are strings.\n" +
	"Do not include any explanations, only provide a RFC8259 compliant JSON response following this format without deviation.\n" +
	"Do not include markdown code blocks in your response."

// MapConverter parses JSON object replies.
type MapConverter struct{}

// NewMapConverter returns a converter for JSON objects.
func NewMapConverter() MapConverter {
	return MapConverter{}
}

func (MapConverter) Format() string { return mapFormat }

// Convert decodes the reply as a JSON object. Numbers are kept as
// json.Number so integer values survive unchanged.
func (MapConverter) Convert(text string) (map[string]any, error) {
	raw, ok := objectText(text)
	if raw == "" {
		return nil, &ParseError{Shape: "map", Reason: "empty response"}
	}
	if !ok {
		return nil, &ParseError{Shape: "map", Reason: "not a JSON object"}
	}

	var out map[string]any
	if err := decodeStrict(raw, &out); err != nil {
		return nil, &ParseError{Shape: "map", Reason: "not a JSON object", Err: err}
	}
	if out == nil {
		return nil, &ParseError{Shape: "map", Reason: "not a JSON object"}
	}
	return out, nil
}

// decodeStrict decodes exactly one JSON value from raw.
func decodeStrict(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errTrailingData
	}
	return nil
}

var errTrailingData = errors.New("unexpected data after JSON value")
