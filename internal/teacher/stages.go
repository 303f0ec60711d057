package teacher

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/shroroh/teacherflow/internal/report"
	"github.com/shroroh/teacherflow/internal/students"
	"github.com/shroroh/teacherflow/pkg/flowgraph"
	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
	"github.com/shroroh/teacherflow/pkg/flowgraph/extract"
)

// Stage IDs in pipeline order.
const (
	StageAssessLevel = "assess_level"
	StagePrioritize  = "prioritize"
	StagePlanTopics  = "plan_topics"
	StageSynthesize  = "synthesize"
)

// generate sends prompt to the run's generator. The cache is only consulted
// on a stage's first attempt.
func generate(ctx flowgraph.Context, prompt string, useCache bool) (string, error) {
	gen := ctx.LLM()
	if gen == nil {
		return "", &fgerrors.ConfigurationError{Setting: "llm", Message: "no generator configured"}
	}
	return gen.Generate(ctx, prompt, useCache && ctx.Attempt() == 1)
}

// truncate enforces a limit the prompt asked the model to respect.
func truncate[T any](ctx flowgraph.Context, what string, items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	ctx.Logger().Warn("model exceeded limit, truncating",
		slog.String("items", what),
		slog.Int("got", len(items)),
		slog.Int("limit", n),
	)
	return items[:n]
}

func invalid(raw, format string, args ...any) error {
	return fgerrors.NewMalformed(fgerrors.ReasonInvalid, raw, fmt.Errorf(format, args...))
}

// AssessLevel rates the student's knowledge per subject.
type AssessLevel struct{}

type assessInput struct {
	Student     students.Record
	MaxSubjects int
	UseCache    bool
}

// Prepare reads the student record, the subject limit and the cache flag.
func (AssessLevel) Prepare(s *flowgraph.Shared) (assessInput, error) {
	rec, err := KeyStudentRecord.Get(s)
	if err != nil {
		return assessInput{}, err
	}
	maxSubjects, err := limit(s, KeyMaxSubjects, DefaultMaxSubjects)
	if err != nil {
		return assessInput{}, err
	}
	useCache, err := KeyUseCache.GetOr(s, true)
	if err != nil {
		return assessInput{}, err
	}
	return assessInput{Student: rec, MaxSubjects: maxSubjects, UseCache: useCache}, nil
}

// Execute asks the model for a per-subject profile and normalizes the levels.
func (AssessLevel) Execute(ctx flowgraph.Context, in assessInput) (StudentProfile, error) {
	ctx.Logger().Info("assessing knowledge level", slog.String("student", in.Student.FullName))

	prompt, err := assessPrompt.Render(map[string]any{
		"student":      in.Student,
		"max_subjects": in.MaxSubjects,
	})
	if err != nil {
		return StudentProfile{}, err
	}
	raw, err := generate(ctx, prompt, in.UseCache)
	if err != nil {
		return StudentProfile{}, err
	}

	profile, err := extract.Payload[StudentProfile](raw, KeyStudentProfile.Name(), extract.Mapping)
	if err != nil {
		return StudentProfile{}, err
	}
	if len(profile.Subjects) == 0 {
		return StudentProfile{}, invalid(raw, "student_profile has no subjects")
	}
	for i := range profile.Subjects {
		sub := &profile.Subjects[i]
		if strings.TrimSpace(sub.Name) == "" {
			return StudentProfile{}, invalid(raw, "subject %d has no name", i+1)
		}
		lvl, err := ParseLevel(string(sub.Level))
		if err != nil {
			return StudentProfile{}, invalid(raw, "subject %s: %v", sub.Name, err)
		}
		sub.Level = lvl
	}
	profile.Subjects = truncate(ctx, "subjects", profile.Subjects, in.MaxSubjects)
	return profile, nil
}

// Publish stores the profile under student_profile.
func (AssessLevel) Publish(ctx flowgraph.Context, s *flowgraph.Shared, _ assessInput, out StudentProfile) error {
	if err := KeyStudentProfile.Put(s, ctx.NodeID(), out); err != nil {
		return err
	}
	ctx.Logger().Info("student profile stored", slog.Int("subjects", len(out.Subjects)))
	return nil
}

// Prioritize ranks subjects by how much attention they need.
type Prioritize struct{}

type prioritizeInput struct {
	Profile  StudentProfile
	UseCache bool
}

// Prepare reads the student profile.
func (Prioritize) Prepare(s *flowgraph.Shared) (prioritizeInput, error) {
	profile, err := KeyStudentProfile.Get(s)
	if err != nil {
		return prioritizeInput{}, err
	}
	useCache, err := KeyUseCache.GetOr(s, true)
	if err != nil {
		return prioritizeInput{}, err
	}
	return prioritizeInput{Profile: profile, UseCache: useCache}, nil
}

// Execute asks the model to rank subjects and sorts them by priority.
func (Prioritize) Execute(ctx flowgraph.Context, in prioritizeInput) ([]PriorityEntry, error) {
	ctx.Logger().Info("prioritizing subjects")

	prompt, err := prioritizePrompt.Render(map[string]any{"student_profile": in.Profile})
	if err != nil {
		return nil, err
	}
	raw, err := generate(ctx, prompt, in.UseCache)
	if err != nil {
		return nil, err
	}

	entries, err := extract.Payload[[]PriorityEntry](raw, KeyLearningPriority.Name(), extract.Sequence)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, invalid(raw, "learning_priority is empty")
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Subject) == "" {
			return nil, invalid(raw, "priority entry %d has no subject", i+1)
		}
		if e.Priority < 1 {
			return nil, invalid(raw, "subject %s: priority %d is below 1", e.Subject, e.Priority)
		}
	}
	slices.SortStableFunc(entries, func(a, b PriorityEntry) int {
		return a.Priority - b.Priority
	})
	return entries, nil
}

// Publish stores the ranking under learning_priority.
func (Prioritize) Publish(ctx flowgraph.Context, s *flowgraph.Shared, _ prioritizeInput, out []PriorityEntry) error {
	if err := KeyLearningPriority.Put(s, ctx.NodeID(), out); err != nil {
		return err
	}
	ctx.Logger().Info("learning priority stored", slog.String("first", out[0].Subject))
	return nil
}

// PlanTopics proposes topics and subtopics to study.
type PlanTopics struct{}

type planInput struct {
	Profile   StudentProfile
	Priority  []PriorityEntry
	MaxTopics int
	UseCache  bool
}

// Prepare reads the profile, the ranking and the topic limit.
func (PlanTopics) Prepare(s *flowgraph.Shared) (planInput, error) {
	profile, err := KeyStudentProfile.Get(s)
	if err != nil {
		return planInput{}, err
	}
	priority, err := KeyLearningPriority.Get(s)
	if err != nil {
		return planInput{}, err
	}
	maxTopics, err := limit(s, KeyMaxTopics, DefaultMaxTopics)
	if err != nil {
		return planInput{}, err
	}
	useCache, err := KeyUseCache.GetOr(s, true)
	if err != nil {
		return planInput{}, err
	}
	return planInput{Profile: profile, Priority: priority, MaxTopics: maxTopics, UseCache: useCache}, nil
}

// Execute asks the model for topics to study, keeping at most MaxTopics.
func (PlanTopics) Execute(ctx flowgraph.Context, in planInput) ([]Topic, error) {
	ctx.Logger().Info("planning topics to discover")

	prompt, err := planPrompt.Render(map[string]any{
		"student_profile":   in.Profile,
		"learning_priority": in.Priority,
		"max_topics":        in.MaxTopics,
	})
	if err != nil {
		return nil, err
	}
	raw, err := generate(ctx, prompt, in.UseCache)
	if err != nil {
		return nil, err
	}

	topics, err := extract.Payload[[]Topic](raw, KeyKnowledgeToDiscover.Name(), extract.Sequence)
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, invalid(raw, "knowledge_to_discover is empty")
	}
	for i, tp := range topics {
		if strings.TrimSpace(tp.Topic) == "" {
			return nil, invalid(raw, "topic %d has no name", i+1)
		}
	}
	return truncate(ctx, "topics", topics, in.MaxTopics), nil
}

// Publish stores the topics under knowledge_to_discover.
func (PlanTopics) Publish(ctx flowgraph.Context, s *flowgraph.Shared, _ planInput, out []Topic) error {
	if err := KeyKnowledgeToDiscover.Put(s, ctx.NodeID(), out); err != nil {
		return err
	}
	ctx.Logger().Info("knowledge topics stored", slog.Int("topics", len(out)))
	return nil
}

// Synthesize writes the teacher's narrative conclusion and emits it as
// documents. A nil Emitter skips emission.
type Synthesize struct {
	Emitter *report.Emitter
}

type synthesizeInput struct {
	Student   students.Record
	Profile   StudentProfile
	Priority  []PriorityEntry
	Topics    []Topic
	OutputDir string
	UseCache  bool
}

var (
	// wholeFence matches a reply that is one fenced block; nested fences stay inside it.
	wholeFence = regexp.MustCompile("(?s)^\\s*```(?:markdown|md)?[ \\t]*\\n(.*?)\\n?```\\s*$")
	// markdownFence matches the first markdown block anywhere in a reply.
	markdownFence = regexp.MustCompile("(?s)```(?:markdown|md)[ \\t]*\\n(?:(.*?)\\n)?```[ \\t]*(?:\\n|$)")
)

// unfence returns the narrative inside the reply's markdown fence, dropping
// any prose the model put around it.
func unfence(raw string) string {
	if m := wholeFence.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := markdownFence.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

// errYAMLInNarrative marks a narrative the model answered in YAML.
var errYAMLInNarrative = errors.New("narrative contains a yaml block")

// Prepare reads the record and every earlier stage output.
func (Synthesize) Prepare(s *flowgraph.Shared) (synthesizeInput, error) {
	var in synthesizeInput
	var err error
	if in.Student, err = KeyStudentRecord.Get(s); err != nil {
		return in, err
	}
	if in.Profile, err = KeyStudentProfile.Get(s); err != nil {
		return in, err
	}
	if in.Priority, err = KeyLearningPriority.Get(s); err != nil {
		return in, err
	}
	if in.Topics, err = KeyKnowledgeToDiscover.Get(s); err != nil {
		return in, err
	}
	if in.OutputDir, err = KeyOutputDir.GetOr(s, DefaultOutputDir); err != nil {
		return in, err
	}
	if in.UseCache, err = KeyUseCache.GetOr(s, true); err != nil {
		return in, err
	}
	return in, nil
}

// Execute asks the model for the narrative and strips its markdown fence.
func (Synthesize) Execute(ctx flowgraph.Context, in synthesizeInput) (string, error) {
	ctx.Logger().Info("writing teacher conclusion", slog.String("student", in.Student.FullName))

	prompt, err := synthesizePrompt.Render(map[string]any{
		"full_name":             in.Student.FullName,
		"class":                 in.Student.Class,
		"student_profile":       in.Profile,
		"learning_priority":     in.Priority,
		"knowledge_to_discover": in.Topics,
	})
	if err != nil {
		return "", err
	}
	raw, err := generate(ctx, prompt, in.UseCache)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(unfence(raw))
	if text == "" {
		return "", invalid(raw, "empty narrative")
	}
	if _, err := extract.Block(text); err == nil {
		return "", fgerrors.NewMalformed(fgerrors.ReasonInvalid, raw, errYAMLInNarrative)
	}
	return text, nil
}

// Publish emits the narrative through the Emitter, then stores the text
// and the written paths.
func (st Synthesize) Publish(ctx flowgraph.Context, s *flowgraph.Shared, in synthesizeInput, out string) error {
	var files []string
	if st.Emitter != nil {
		var err error
		files, err = st.Emitter.Emit(report.Job{Name: in.Student.FullName, Text: out, Dir: in.OutputDir})
		if err != nil {
			return err
		}
	}
	if err := KeyTeacherConclusion.Put(s, ctx.NodeID(), out); err != nil {
		return err
	}
	if err := KeyTeacherConclusionFiles.Put(s, ctx.NodeID(), files); err != nil {
		return err
	}
	for _, f := range files {
		ctx.Logger().Info("teacher conclusion saved", slog.String("path", f))
	}
	return nil
}
