package services

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholders look like {{Name}}. Unbalanced braces simply fail to match,
// so malformed syntax is never an error, only well-formed tokens count.
var placeholderRegex = regexp.MustCompile(`\{\{(.*?)\}\}`)

// ExtractPlaceholders returns the placeholder names found in the template,
// in order of first occurrence, without duplicates.
func ExtractPlaceholders(content string) []string {
	matches := placeholderRegex.FindAllStringSubmatch(content, -1)

	var names []string
	seen := make(map[string]bool)
	for _, m := range matches {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// MissingColumns returns the placeholders that have no matching column,
// preserving placeholder order. An empty result means the template can be
// rendered against every row of the table.
func MissingColumns(placeholders, columns []string) []string {
	available := make(map[string]bool, len(columns))
	for _, c := range columns {
		available[c] = true
	}

	var missing []string
	for _, p := range placeholders {
		if !available[p] {
			missing = append(missing, p)
		}
	}
	return missing
}

// RenderRow substitutes one row's values into the template with an explicit
// lookup per placeholder. A placeholder absent from the row (a data
// inconsistency, since the table already passed validation) fails the render.
func RenderRow(content string, placeholders []string, row Row) (string, error) {
	rendered := content
	for _, name := range placeholders {
		value, ok := row[name]
		if !ok {
			return "", fmt.Errorf("row has no value for column %q", name)
		}
		rendered = strings.ReplaceAll(rendered, "{{"+name+"}}", value)
	}
	return rendered, nil
}
