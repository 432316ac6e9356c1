package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrMissingVariable is returned when a placeholder has no value.
var ErrMissingVariable = errors.New("missing template variable")

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// MissingVariableError lists every placeholder left without a value.
type MissingVariableError struct {
	Names []string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variable(s): %s", strings.Join(e.Names, ", "))
}

func (e *MissingVariableError) Is(target error) bool { return target == ErrMissingVariable }

// Template is a prompt text with {name} placeholders.
// Braces that do not enclose an identifier are literal text.
type Template struct {
	text         string
	placeholders []string
}

// NewTemplate parses text once.
func NewTemplate(text string) *Template {
	t := &Template{text: text}
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			t.placeholders = append(t.placeholders, m[1])
		}
	}
	return t
}

// Text returns the unfilled template.
func (t *Template) Text() string { return t.text }

// Placeholders returns placeholder names in order of first appearance.
func (t *Template) Placeholders() []string {
	out := make([]string, len(t.placeholders))
	copy(out, t.placeholders)
	return out
}

// Fill substitutes every placeholder with the matching value from vars.
// Values are inserted as-is and never scanned for further placeholders.
// Extra entries in vars are ignored.
func (t *Template) Fill(vars map[string]any) (string, error) {
	var missing []string
	for _, name := range t.placeholders {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &MissingVariableError{Names: missing}
	}

	return placeholderPattern.ReplaceAllStringFunc(t.text, func(m string) string {
		return fmt.Sprint(vars[m[1:len(m)-1]])
	}), nil
}

// Fill is shorthand for NewTemplate(text).Fill(vars).
func Fill(text string, vars map[string]any) (string, error) {
	return NewTemplate(text).Fill(vars)
}
