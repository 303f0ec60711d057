package teacher

import (
	"github.com/shroroh/teacherflow/internal/students"
	"github.com/shroroh/teacherflow/pkg/flowgraph"
	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
)

// Caller inputs.
var (
	KeyStudentRecord = flowgraph.NewKey[students.Record]("student_record")
	KeyUseCache      = flowgraph.NewKey[bool]("use_cache")
	KeyMaxSubjects   = flowgraph.NewKey[int]("max_subjects")
	KeyMaxTopics     = flowgraph.NewKey[int]("max_topics")
	KeyOutputDir     = flowgraph.NewKey[string]("output_dir")
)

// Stage outputs.
var (
	KeyStudentProfile         = flowgraph.NewKey[StudentProfile]("student_profile")
	KeyLearningPriority       = flowgraph.NewKey[[]PriorityEntry]("learning_priority")
	KeyKnowledgeToDiscover    = flowgraph.NewKey[[]Topic]("knowledge_to_discover")
	KeyTeacherConclusion      = flowgraph.NewKey[string]("teacher_conclusion")
	KeyTeacherConclusionFiles = flowgraph.NewKey[[]string]("teacher_conclusion_files")
)

// Defaults for absent caller inputs.
const (
	DefaultMaxSubjects = 10
	DefaultMaxTopics   = 10
	DefaultOutputDir   = "output"
)

// Request is what a caller seeds into a fresh shared store.
type Request struct {
	Student     students.Record
	NoCache     bool
	MaxSubjects int
	MaxTopics   int
	OutputDir   string
}

// Seed writes the request into s, filling zero values with defaults.
func (r Request) Seed(s *flowgraph.Shared) error {
	if r.MaxSubjects == 0 {
		r.MaxSubjects = DefaultMaxSubjects
	}
	if r.MaxTopics == 0 {
		r.MaxTopics = DefaultMaxTopics
	}
	if r.OutputDir == "" {
		r.OutputDir = DefaultOutputDir
	}

	seeds := []func() error{
		func() error { return KeyStudentRecord.Seed(s, r.Student) },
		func() error { return KeyUseCache.Seed(s, !r.NoCache) },
		func() error { return KeyMaxSubjects.Seed(s, r.MaxSubjects) },
		func() error { return KeyMaxTopics.Seed(s, r.MaxTopics) },
		func() error { return KeyOutputDir.Seed(s, r.OutputDir) },
	}
	for _, seed := range seeds {
		if err := seed(); err != nil {
			return err
		}
	}
	return nil
}

// limit reads a positive limit, defaulting when absent.
func limit(s *flowgraph.Shared, key flowgraph.Key[int], def int) (int, error) {
	n, err := key.GetOr(s, def)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, &fgerrors.MissingInputError{Key: key.Name(), Detail: "must be positive"}
	}
	return n, nil
}
