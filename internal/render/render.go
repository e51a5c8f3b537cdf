// Package render expands challenge description templates.
package render

import (
	"bytes"
	"fmt"
	"text/template"
)

// Render executes tmpl with context as the root data. Keys absent from the
// context render as zero values, mirroring lenient description templates
// that reference shortcuts a challenge may not define.
func Render(tmpl string, context map[string]any) (string, error) {
	parsed, err := template.New("description").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse description template: %w", err)
	}
	var buf bytes.Buffer
	if err := parsed.Execute(&buf, context); err != nil {
		return "", fmt.Errorf("render description template: %w", err)
	}
	return buf.String(), nil
}
