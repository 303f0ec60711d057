package teacher

import (
	"fmt"
	"strings"
)

// Level is a subject knowledge level.
type Level string

// Knowledge levels, lowest first.
const (
	LevelVeryLow      Level = "Very Low"
	LevelAverage      Level = "Average"
	LevelAboveAverage Level = "Above Average"
	LevelHigh         Level = "High"
)

var levels = []Level{LevelVeryLow, LevelAverage, LevelAboveAverage, LevelHigh}

// ParseLevel normalizes s to a Level. Matching ignores case, and treats
// runs of spaces, underscores and hyphens as one space.
func ParseLevel(s string) (Level, error) {
	norm := strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '\t'
	}), " ")
	for _, l := range levels {
		if strings.ToLower(string(l)) == norm {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown knowledge level %q", s)
}

// Rank orders levels from 0 (Very Low) to 3 (High); unknown levels are -1.
func (l Level) Rank() int {
	for i, v := range levels {
		if v == l {
			return i
		}
	}
	return -1
}

// StudentProfile is the assessment produced by assess_level.
type StudentProfile struct {
	Subjects []SubjectAssessment `yaml:"subjects"`
}

// SubjectAssessment is one subject's level with its reasoning.
type SubjectAssessment struct {
	Name      string   `yaml:"name"`
	Level     Level    `yaml:"level"`
	Reasoning string   `yaml:"reasoning"`
	Strengths []string `yaml:"strengths"`
	Gaps      []string `yaml:"gaps"`
}

// Subject returns the assessment for name.
func (p StudentProfile) Subject(name string) (SubjectAssessment, bool) {
	for _, s := range p.Subjects {
		if s.Name == name {
			return s, true
		}
	}
	return SubjectAssessment{}, false
}

// PriorityEntry ranks one subject; priority 1 needs the most attention.
type PriorityEntry struct {
	Subject   string `yaml:"subject"`
	Priority  int    `yaml:"priority"`
	Reasoning string `yaml:"reasoning"`
}

// Topic is one study-plan item produced by plan_topics.
type Topic struct {
	Topic     string     `yaml:"topic"`
	BasedFrom string     `yaml:"based_from"`
	Examples  []string   `yaml:"examples"`
	Subtopics []Subtopic `yaml:"subtopics"`
}

// Subtopic is a narrower item under a Topic.
type Subtopic struct {
	Name      string `yaml:"name"`
	BasedFrom string `yaml:"based_from"`
}
