// Package teacher is the teacher-conclusion pipeline: four stages that
// assess a student, rank subjects, plan topics and write a narrative
// conclusion, each feeding the next through one shared store.
//
//	assess_level -> prioritize -> plan_topics -> synthesize
package teacher

import (
	"github.com/shroroh/teacherflow/internal/report"
	"github.com/shroroh/teacherflow/pkg/flowgraph"
	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
)

// NewFlow compiles the pipeline. Every stage retries under retry.
// emitter may be nil to skip document emission.
func NewFlow(retry fgerrors.RetryConfig, emitter *report.Emitter) (*flowgraph.Runner, error) {
	with := flowgraph.WithRetry(retry)
	return flowgraph.NewChain().
		Named("teacher").
		Then(flowgraph.NewNode(StageAssessLevel, AssessLevel{}, with)).
		Then(flowgraph.NewNode(StagePrioritize, Prioritize{}, with)).
		Then(flowgraph.NewNode(StagePlanTopics, PlanTopics{}, with)).
		Then(flowgraph.NewNode(StageSynthesize, Synthesize{Emitter: emitter}, with)).
		Compile()
}

// Conclusion collects a finished run's outputs.
type Conclusion struct {
	Profile  StudentProfile
	Priority []PriorityEntry
	Topics   []Topic
	Text     string
	Files    []string
}

// Collect reads every stage output from s.
func Collect(s *flowgraph.Shared) (Conclusion, error) {
	var c Conclusion
	var err error
	if c.Profile, err = KeyStudentProfile.Get(s); err != nil {
		return c, err
	}
	if c.Priority, err = KeyLearningPriority.Get(s); err != nil {
		return c, err
	}
	if c.Topics, err = KeyKnowledgeToDiscover.Get(s); err != nil {
		return c, err
	}
	if c.Text, err = KeyTeacherConclusion.Get(s); err != nil {
		return c, err
	}
	if c.Files, err = KeyTeacherConclusionFiles.Get(s); err != nil {
		return c, err
	}
	return c, nil
}

// Run seeds a fresh shared store from req, runs the pipeline and collects
// its outputs.
func Run(ctx flowgraph.Context, runner *flowgraph.Runner, req Request, opts ...flowgraph.RunOption) (Conclusion, flowgraph.Result, error) {
	shared := flowgraph.NewShared()
	if err := req.Seed(shared); err != nil {
		return Conclusion{}, flowgraph.Result{}, err
	}
	result, err := runner.Run(ctx, shared, opts...)
	if err != nil {
		return Conclusion{}, result, err
	}
	c, err := Collect(shared)
	return c, result, err
}
