// Package extract pulls structured payloads out of free-form model replies.
//
// Models are asked to answer inside a fenced block:
//
//	```yaml
//	student_profile:
//	  subjects: [...]
//	```
//
// Block finds the first such fence, Document parses it and checks the
// required top-level key, and Payload decodes the value under that key.
// Every failure is a *errors.MalformedResponseError so callers can retry.
package extract

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
)

// Kind is the YAML node shape a required key must hold.
type Kind int

const (
	// Any accepts any node kind.
	Any Kind = iota
	// Mapping requires a YAML mapping.
	Mapping
	// Sequence requires a YAML sequence.
	Sequence
	// Scalar requires a YAML scalar.
	Scalar
)

func (k Kind) matches(n *yaml.Node) bool {
	switch k {
	case Mapping:
		return n.Kind == yaml.MappingNode
	case Sequence:
		return n.Kind == yaml.SequenceNode
	case Scalar:
		return n.Kind == yaml.ScalarNode
	default:
		return true
	}
}

var fencePattern = regexp.MustCompile("(?s)```(?:yaml|yml)\\b(.*?)```")

// Block returns the contents of the first ```yaml fenced block in raw.
func Block(raw string) (string, error) {
	m := fencePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", fgerrors.NewMalformed(fgerrors.ReasonNoFencedBlock, raw, nil)
	}
	return strings.TrimSpace(m[1]), nil
}

// Document parses the fenced block and checks that key is present at the top
// level with the given kind. It returns the whole document mapping.
func Document(raw, key string, kind Kind) (*yaml.Node, error) {
	root, _, err := locate(raw, key, kind)
	if err != nil {
		return nil, err
	}
	return root, nil
}

// Payload decodes the value stored under key into T.
func Payload[T any](raw, key string, kind Kind) (T, error) {
	var out T
	_, value, err := locate(raw, key, kind)
	if err != nil {
		return out, err
	}
	if err := value.Decode(&out); err != nil {
		return out, fgerrors.NewMalformed(fgerrors.ReasonParseFailure, raw, err)
	}
	return out, nil
}

func locate(raw, key string, kind Kind) (*yaml.Node, *yaml.Node, error) {
	block, err := Block(raw)
	if err != nil {
		return nil, nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil, nil, fgerrors.NewMalformed(fgerrors.ReasonParseFailure, raw, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil, fgerrors.MissingKey(key, raw)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil, fgerrors.MissingKey(key, raw)
	}

	value := lookup(root, key)
	if value == nil || !kind.matches(value) {
		return nil, nil, fgerrors.MissingKey(key, raw)
	}
	return root, value, nil
}

// lookup returns the value node for key in a mapping, resolving aliases.
func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			v := mapping.Content[i+1]
			if v.Kind == yaml.AliasNode && v.Alias != nil {
				v = v.Alias
			}
			return v
		}
	}
	return nil
}
