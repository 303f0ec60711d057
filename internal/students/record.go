package students

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Mark bounds on the five-point school scale.
const (
	MinMark = 1
	MaxMark = 5
)

// Record is a normalized student record.
type Record struct {
	FullName string `yaml:"full_name"`
	Class    int    `yaml:"class"`
	Bio      string `yaml:"bio"`
	Marks    Marks  `yaml:"marks"`
}

// SubjectMarks holds the marks for one subject in the order they were given.
type SubjectMarks struct {
	Subject string
	Marks   []int
}

// Average returns the mean mark, or 0 when there are none.
func (s SubjectMarks) Average() float64 {
	if len(s.Marks) == 0 {
		return 0
	}
	sum := 0
	for _, m := range s.Marks {
		sum += m
	}
	return float64(sum) / float64(len(s.Marks))
}

// Marks maps subjects to marks and keeps the source order.
// It encodes as a YAML mapping.
type Marks []SubjectMarks

// Subjects returns the subject names in order.
func (m Marks) Subjects() []string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Subject
	}
	return names
}

// Get returns the marks for subject.
func (m Marks) Get(subject string) ([]int, bool) {
	for _, s := range m {
		if s.Subject == subject {
			return s.Marks, true
		}
	}
	return nil, false
}

// MarshalYAML implements yaml.Marshaler.
func (m Marks) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, s := range m {
		var v yaml.Node
		if err := v.Encode(s.Marks); err != nil {
			return nil, fmt.Errorf("encode marks for %s: %w", s.Subject, err)
		}
		v.Style = yaml.FlowStyle
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.Subject},
			&v,
		)
	}
	return n, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Marks) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: marks must map subjects to mark lists", n.Line)
	}
	out := make(Marks, 0, len(n.Content)/2)
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		subject := n.Content[i].Value
		if seen[subject] {
			return fmt.Errorf("line %d: subject %q listed twice", n.Content[i].Line, subject)
		}
		seen[subject] = true

		var marks []int
		if err := n.Content[i+1].Decode(&marks); err != nil {
			return fmt.Errorf("subject %q: %w", subject, err)
		}
		for _, v := range marks {
			if v < MinMark || v > MaxMark {
				return fmt.Errorf("subject %q: mark %d outside %d-%d", subject, v, MinMark, MaxMark)
			}
		}
		out = append(out, SubjectMarks{Subject: subject, Marks: marks})
	}
	*m = out
	return nil
}
