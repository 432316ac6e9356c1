package converter

import (
	"strconv"
	"strings"
)

const listFormat = "Respond with only a list of comma-separated values, without any leading or trailing text.\n" +
	"Example format: foo, bar, baz"

// ListConverter parses comma-separated replies into a slice of strings.
type ListConverter struct{}

// NewListConverter returns a converter for comma-separated lists.
func NewListConverter() ListConverter {
	return ListConverter{}
}

func (ListConverter) Format() string { return listFormat }

// Convert splits the reply on commas and trims every item. An empty reply,
// an empty item or an item spanning lines is an error; items are kept in
// reply order.
func (ListConverter) Convert(text string) ([]string, error) {
	text = stripFences(text)
	if text == "" {
		return nil, &ParseError{Shape: "list", Reason: "empty response"}
	}

	parts := strings.Split(text, ",")
	items := make([]string, 0, len(parts))
	for i, p := range parts {
		item := strings.TrimSpace(p)
		if item == "" {
			return nil, &ParseError{Shape: "list", Reason: "empty item at position " + strconv.Itoa(i)}
		}
		if strings.ContainsAny(item, "\r\n") {
			return nil, &ParseError{Shape: "list", Reason: "line break in item at position " + strconv.Itoa(i)}
		}
		items = append(items, item)
	}
	return items, nil
}
