package template

import (
	"fmt"
)

// Prompt is a named template that must be fully expanded.
type Prompt struct {
	name   string
	text   string
	format Formatter
}

// Option configures a Prompt.
type Option func(*Prompt)

// WithFormatter sets how variable values are rendered.
// A nil formatter restores DefaultFormatter.
func WithFormatter(f Formatter) Option {
	return func(p *Prompt) {
		if f == nil {
			f = DefaultFormatter
		}
		p.format = f
	}
}

// NewPrompt creates a prompt named name.
func NewPrompt(name, text string, opts ...Option) *Prompt {
	p := &Prompt{name: name, text: text, format: DefaultFormatter}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the prompt's name.
func (p *Prompt) Name() string {
	return p.name
}

// Text returns the unexpanded template text.
func (p *Prompt) Text() string {
	return p.text
}

// Vars returns the variables the prompt references, in first-use order.
func (p *Prompt) Vars() []string {
	return names(p.text)
}

// Render expands the prompt with vars. It fails with an
// *UndefinedVariableError naming every placeholder without a value.
func (p *Prompt) Render(vars map[string]any) (string, error) {
	out, err := expand(p.text, vars, p.format)
	if err != nil {
		return "", fmt.Errorf("prompt %s: %w", p.name, err)
	}
	return out, nil
}
