package converter

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// FieldType is the JSON type a record field must carry.
type FieldType int

const (
	String FieldType = iota
	Integer
	Number
	Boolean
	StringList
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	case StringList:
		return "array of strings"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field is one required property of a record.
type Field struct {
	Name        string
	Type        FieldType
	Description string
}

// Schema declares the shape of a record. Every field is required and no
// other properties are accepted.
type Schema struct {
	Name   string
	Fields []Field
}

// JSONSchema renders the schema as a JSON Schema document.
func (s Schema) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		props.Set(f.Name, fieldSchema(f))
		required = append(required, f.Name)
	}
	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                s.Name,
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

func fieldSchema(f Field) *jsonschema.Schema {
	var s *jsonschema.Schema
	switch f.Type {
	case Integer:
		s = &jsonschema.Schema{Type: "integer"}
	case Number:
		s = &jsonschema.Schema{Type: "number"}
	case Boolean:
		s = &jsonschema.Schema{Type: "boolean"}
	case StringList:
		s = &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "string"}}
	default:
		s = &jsonschema.Schema{Type: "string"}
	}
	s.Description = f.Description
	return s
}

const recordFormat = "Your response should be in JSON format.\n" +
	"Do not include any explanations, only provide a RFC8259 compliant JSON response following this format without deviation.\n" +
	"Do not include markdown code blocks in your response.\n" +
	"Here is the JSON Schema instance your output must adhere to:\n%s\n"

// RecordConverter parses JSON replies into a record of type T after
// checking them against an explicit Schema.
type RecordConverter[T any] struct {
	schema Schema
	format string
}

// NewRecordConverter returns a converter for schema. The format description
// is rendered once. It panics if the schema cannot be rendered, which only
// happens for a programming error.
func NewRecordConverter[T any](schema Schema) *RecordConverter[T] {
	doc, err := json.MarshalIndent(schema.JSONSchema(), "", "  ")
	if err != nil {
		panic(fmt.Sprintf("converter: render schema %s: %v", schema.Name, err))
	}
	return &RecordConverter[T]{
		schema: schema,
		format: fmt.Sprintf(recordFormat, doc),
	}
}

// Schema returns the declared shape.
func (c *RecordConverter[T]) Schema() Schema { return c.schema }

func (c *RecordConverter[T]) Format() string { return c.format }

// Convert validates the reply against the schema and decodes it into T.
func (c *RecordConverter[T]) Convert(text string) (T, error) {
	var zero T
	shape := "record " + c.schema.Name

	raw, ok := objectText(text)
	if raw == "" {
		return zero, &ParseError{Shape: shape, Reason: "empty response"}
	}
	if !ok {
		return zero, &ParseError{Shape: shape, Reason: "not a JSON object"}
	}

	var obj map[string]any
	if err := decodeStrict(raw, &obj); err != nil || obj == nil {
		return zero, &ParseError{Shape: shape, Reason: "not a JSON object", Err: err}
	}
	if err := c.check(obj); err != nil {
		return zero, &ParseError{Shape: shape, Reason: err.Error()}
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return zero, &ParseError{Shape: shape, Reason: "decode failed", Err: err}
	}
	return out, nil
}

func (c *RecordConverter[T]) check(obj map[string]any) error {
	declared := make(map[string]bool, len(c.schema.Fields))
	for _, f := range c.schema.Fields {
		declared[f.Name] = true
		v, ok := obj[f.Name]
		if !ok {
			return fmt.Errorf("missing field %q", f.Name)
		}
		if !hasType(v, f.Type) {
			return fmt.Errorf("field %q must be %s", f.Name, f.Type)
		}
	}

	var unknown []string
	for k := range obj {
		if !declared[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown field %q", unknown[0])
	}
	return nil
}

// hasType reports whether v, decoded with json.Number, carries type t.
func hasType(v any, t FieldType) bool {
	switch t {
	case String:
		_, ok := v.(string)
		return ok
	case Integer:
		n, ok := v.(json.Number)
		if !ok {
			return false
		}
		_, err := n.Int64()
		return err == nil
	case Number:
		_, ok := v.(json.Number)
		return ok
	case Boolean:
		_, ok := v.(bool)
		return ok
	case StringList:
		items, ok := v.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}
