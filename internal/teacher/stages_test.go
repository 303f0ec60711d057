package teacher

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shroroh/teacherflow/pkg/flowgraph"
	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
)

func fence(body string) string {
	return "```yaml\n" + body + "```"
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"Very Low", LevelVeryLow},
		{"very_low", LevelVeryLow},
		{"  AVERAGE ", LevelAverage},
		{"above-average", LevelAboveAverage},
		{"Above  Average", LevelAboveAverage},
		{"high", LevelHigh},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("excellent")
	assert.ErrorContains(t, err, "unknown knowledge level")

	assert.Equal(t, 0, LevelVeryLow.Rank())
	assert.Equal(t, 3, LevelHigh.Rank())
	assert.Equal(t, -1, Level("Genius").Rank())
}

func TestAssessLevel_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		reason string
	}{
		{"no fence", "Math: high", fgerrors.ReasonNoFencedBlock},
		{"wrong key", fence("profile:\n  subjects: []\n"), fgerrors.ReasonMissingKey},
		{"not a mapping", fence("student_profile: [Math]\n"), fgerrors.ReasonMissingKey},
		{"no subjects", fence("student_profile:\n  subjects: []\n"), fgerrors.ReasonInvalid},
		{"unnamed subject", fence("student_profile:\n  subjects:\n    - level: High\n"), fgerrors.ReasonInvalid},
		{"unknown level", fence("student_profile:\n  subjects:\n    - name: Math\n      level: Genius\n"), fgerrors.ReasonInvalid},
		{"bad yaml", fence("student_profile: [\n"), fgerrors.ReasonParseFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AssessLevel{}.Execute(stageCtx(fixedModel(tt.reply), nil), assessInput{MaxSubjects: 10})

			var malformed *fgerrors.MalformedResponseError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.reason, malformed.Reason)
			assert.True(t, fgerrors.IsRetryable(err))
		})
	}
}

func TestAssessLevel_TruncatesToLimit(t *testing.T) {
	reply := fence(`student_profile:
  subjects:
    - {name: Math, level: High}
    - {name: Physics, level: Average}
    - {name: History, level: Very Low}
`)
	var logs bytes.Buffer

	profile, err := AssessLevel{}.Execute(stageCtx(fixedModel(reply), &logs), assessInput{MaxSubjects: 2})
	require.NoError(t, err)

	require.Len(t, profile.Subjects, 2)
	assert.Equal(t, "Physics", profile.Subjects[1].Name)
	assert.Contains(t, logs.String(), "model exceeded limit, truncating")
	assert.Contains(t, logs.String(), "got=3")
}

func TestAssessLevel_PrepareLimits(t *testing.T) {
	shared := flowgraph.NewShared()
	require.NoError(t, KeyStudentRecord.Seed(shared, maria(t)))
	require.NoError(t, KeyMaxSubjects.Seed(shared, 0))

	_, err := AssessLevel{}.Prepare(shared)

	var missing *fgerrors.MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "max_subjects", missing.Key)
	assert.Equal(t, "must be positive", missing.Detail)
}

func TestAssessLevel_PrepareDefaults(t *testing.T) {
	shared := flowgraph.NewShared()
	require.NoError(t, KeyStudentRecord.Seed(shared, maria(t)))

	in, err := AssessLevel{}.Prepare(shared)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSubjects, in.MaxSubjects)
	assert.True(t, in.UseCache)
	assert.Equal(t, "Мария Петрова", in.Student.FullName)
}

func TestPrioritize_Validation(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   string
	}{
		{"empty", fence("learning_priority: []\n"), "learning_priority is empty"},
		{"no subject", fence("learning_priority:\n  - priority: 1\n"), "no subject"},
		{"zero priority", fence("learning_priority:\n  - subject: Math\n    priority: 0\n"), "below 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prioritize{}.Execute(stageCtx(fixedModel(tt.reply), nil), prioritizeInput{})

			var malformed *fgerrors.MalformedResponseError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, fgerrors.ReasonInvalid, malformed.Reason)
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestPrioritize_SortsByPriority(t *testing.T) {
	reply := fence(`learning_priority:
  - {subject: History, priority: 3}
  - {subject: Physics, priority: 1}
  - {subject: English, priority: 2}
  - {subject: Math, priority: 3}
`)

	entries, err := Prioritize{}.Execute(stageCtx(fixedModel(reply), nil), prioritizeInput{})
	require.NoError(t, err)

	var order []string
	for _, e := range entries {
		order = append(order, e.Subject)
	}
	assert.Equal(t, []string{"Physics", "English", "History", "Math"}, order, "ties keep the model's order")
}

func TestPlanTopics_Validation(t *testing.T) {
	_, err := PlanTopics{}.Execute(stageCtx(fixedModel(fence("knowledge_to_discover:\n  - examples: [x]\n")), nil), planInput{MaxTopics: 5})
	assert.ErrorContains(t, err, "topic 1 has no name")

	_, err = PlanTopics{}.Execute(stageCtx(fixedModel(fence("knowledge_to_discover: {topic: x}\n")), nil), planInput{MaxTopics: 5})
	var malformed *fgerrors.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, fgerrors.ReasonMissingKey, malformed.Reason)
}

func TestPlanTopics_TruncatesToLimit(t *testing.T) {
	reply := fence("knowledge_to_discover:\n  - topic: A\n  - topic: B\n  - topic: C\n")

	topics, err := PlanTopics{}.Execute(stageCtx(fixedModel(reply), nil), planInput{MaxTopics: 1})
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "A", topics[0].Topic)
}

func TestSynthesize_Execute(t *testing.T) {
	in := synthesizeInput{Student: maria(t)}

	tests := []struct {
		name   string
		reply  string
		want   string
		reason string
	}{
		{name: "plain", reply: "\n### Итог\n\nТекст.\n", want: "### Итог\n\nТекст."},
		{name: "markdown fence", reply: "```markdown\n### Итог\n\nТекст.\n```\n", want: "### Итог\n\nТекст."},
		{name: "md fence", reply: "```md\nТекст.\n```", want: "Текст."},
		{name: "fence with trailing prose", reply: "```markdown\n### Итог\n\nТекст.\n```\n\nHope this helps!", want: "### Итог\n\nТекст."},
		{name: "fence with prose around", reply: "Конечно! Вот заключение:\n\n```md\n### Итог\nТекст.\n```\nУдачи.", want: "### Итог\nТекст."},
		{name: "fence keeps nested code", reply: "```markdown\n### Итог\n\n```\nx = 1\n```\n```", want: "### Итог\n\n```\nx = 1\n```"},
		{name: "inner code kept", reply: "Шаги:\n\n```\nx = 1\n```\n", want: "Шаги:\n\n```\nx = 1\n```"},
		{name: "empty", reply: "   \n", reason: fgerrors.ReasonInvalid},
		{name: "empty fence", reply: "```markdown\n```", reason: fgerrors.ReasonInvalid},
		{name: "empty fence with prose", reply: "Вот:\n```markdown\n```\nВсё.", reason: fgerrors.ReasonInvalid},
		{name: "yaml answer", reply: "Вот:\n```yaml\nstudent_profile: {}\n```", reason: fgerrors.ReasonInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Synthesize{}.Execute(stageCtx(fixedModel(tt.reply), nil), in)
			if tt.reason != "" {
				var malformed *fgerrors.MalformedResponseError
				require.ErrorAs(t, err, &malformed)
				assert.Equal(t, tt.reason, malformed.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSynthesize_PrepareNeedsEveryOutput(t *testing.T) {
	shared := flowgraph.NewShared()
	require.NoError(t, Request{Student: maria(t)}.Seed(shared))
	require.NoError(t, KeyStudentProfile.Put(shared, StageAssessLevel, StudentProfile{}))

	_, err := Synthesize{}.Prepare(shared)

	var missing *fgerrors.MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "learning_priority", missing.Key)
}

func TestGenerate_NoGenerator(t *testing.T) {
	_, err := AssessLevel{}.Execute(stageCtx(nil, nil), assessInput{MaxSubjects: 1})

	var cfgErr *fgerrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.False(t, fgerrors.IsRetryable(err))
}
