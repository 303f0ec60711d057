/*
Package template renders ${var} placeholders in model prompts.

A stage renders its prompt from the values it prepared. A placeholder
without a value is an error rather than a silent gap in the prompt:

	p := template.NewPrompt("assess_level", "Student data:\n${student}\n")
	text, err := p.Render(map[string]any{"student": record})

Only the brace form is recognized, so literal dollar signs in a prompt are
left alone. Substituted text is never expanded again, so a value that
itself contains "${" is inserted verbatim.

Values are rendered with %v unless a Formatter is configured:

	p := template.NewPrompt(name, text, template.WithFormatter(toYAML))

Prompt is safe for concurrent use after construction.
*/
package template
