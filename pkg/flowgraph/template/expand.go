package template

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholder matches ${name}; names are identifiers.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Formatter renders a variable's value into prompt text.
type Formatter func(v any) (string, error)

// DefaultFormatter renders values with %v.
func DefaultFormatter(v any) (string, error) {
	return fmt.Sprintf("%v", v), nil
}

// UndefinedVariableError lists the placeholders that had no value.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// expand replaces every placeholder in s in a single pass.
func expand(s string, vars map[string]any, format Formatter) (string, error) {
	var (
		missing   []string
		seen      = make(map[string]bool)
		formatErr error
	)

	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		val, ok := vars[name]
		if !ok {
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
			return match
		}
		text, err := format(val)
		if err != nil {
			if formatErr == nil {
				formatErr = fmt.Errorf("format %s: %w", name, err)
			}
			return match
		}
		return text
	})

	if formatErr != nil {
		return "", formatErr
	}
	if len(missing) > 0 {
		return "", &UndefinedVariableError{Names: missing}
	}
	return out, nil
}

// names returns the placeholders in s in first-use order.
func names(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
