package extract_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
	"github.com/shroroh/teacherflow/pkg/flowgraph/extract"
)

const profileReply = "Here is the assessment.\n\n```yaml\nstudent_profile:\n  subjects:\n    - name: Math\n      level: High\n    - name: Physics\n      level: Average\n```\n\nLet me know."

type subject struct {
	Name  string `yaml:"name"`
	Level string `yaml:"level"`
}

type profile struct {
	Subjects []subject `yaml:"subjects"`
}

func TestBlock(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"yaml fence", "```yaml\na: 1\n```", "a: 1"},
		{"yml fence", "text ```yml\nb: 2\n``` tail", "b: 2"},
		{"first block wins", "```yaml\nfirst: 1\n```\n```yaml\nsecond: 2\n```", "first: 1"},
		{"inline content", "```yaml key: v```", "key: v"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extract.Block(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBlock_NoFence(t *testing.T) {
	for _, raw := range []string{"", "plain text", "```json\n{}\n```", "```yamlish\na: 1\n```"} {
		_, err := extract.Block(raw)
		var mal *fgerrors.MalformedResponseError
		require.True(t, errors.As(err, &mal), "raw %q", raw)
		assert.Equal(t, fgerrors.ReasonNoFencedBlock, mal.Reason)
	}
}

func TestPayload(t *testing.T) {
	got, err := extract.Payload[profile](profileReply, "student_profile", extract.Mapping)
	require.NoError(t, err)
	require.Len(t, got.Subjects, 2)
	assert.Equal(t, "Math", got.Subjects[0].Name)
	assert.Equal(t, "Average", got.Subjects[1].Level)
}

func TestPayload_Sequence(t *testing.T) {
	raw := "```yaml\nlearning_priority:\n  - subject: Physics\n    priority: 1\n```"
	type entry struct {
		Subject  string `yaml:"subject"`
		Priority int    `yaml:"priority"`
	}

	got, err := extract.Payload[[]entry](raw, "learning_priority", extract.Sequence)
	require.NoError(t, err)
	assert.Equal(t, []entry{{Subject: "Physics", Priority: 1}}, got)
}

func TestPayload_Errors(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		key    string
		kind   extract.Kind
		reason string
	}{
		{"no fence", "no yaml here", "student_profile", extract.Mapping, fgerrors.ReasonNoFencedBlock},
		{"parse failure", "```yaml\na: [1, 2\n```", "a", extract.Any, fgerrors.ReasonParseFailure},
		{"missing key", "```yaml\nother: 1\n```", "student_profile", extract.Mapping, fgerrors.ReasonMissingKey},
		{"wrong kind", "```yaml\nlearning_priority: high\n```", "learning_priority", extract.Sequence, fgerrors.ReasonMissingKey},
		{"empty block", "```yaml\n```", "student_profile", extract.Mapping, fgerrors.ReasonMissingKey},
		{"top level list", "```yaml\n- a\n- b\n```", "student_profile", extract.Mapping, fgerrors.ReasonMissingKey},
		{"decode failure", "```yaml\nstudent_profile:\n  subjects: 5\n```", "student_profile", extract.Mapping, fgerrors.ReasonParseFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract.Payload[profile](tt.raw, tt.key, tt.kind)
			var mal *fgerrors.MalformedResponseError
			require.ErrorAs(t, err, &mal)
			assert.Equal(t, tt.reason, mal.Reason)
			if tt.reason == fgerrors.ReasonMissingKey {
				assert.Equal(t, tt.key, mal.Key)
			}
			assert.True(t, fgerrors.IsRetryable(err))
		})
	}
}

func TestDocument(t *testing.T) {
	root, err := extract.Document(profileReply, "student_profile", extract.Mapping)
	require.NoError(t, err)
	require.NotEmpty(t, root.Content)
	assert.Equal(t, "student_profile", root.Content[0].Value)
}
