package students

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
)

func TestDefault(t *testing.T) {
	repo, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"ivan123", "ivan_petrov", "maria123"}, repo.Logins())
	assert.Equal(t, 3, repo.Len())

	rec, ok := repo.Get("maria123")
	require.True(t, ok)
	assert.Equal(t, "Мария Петрова", rec.FullName)
	assert.Equal(t, 9, rec.Class)
	assert.Contains(t, rec.Bio, "кружок по драме")
	assert.Equal(t,
		[]string{"Math", "Physics", "English", "History", "Informatics", "Russian language"},
		rec.Marks.Subjects())

	math, ok := rec.Marks.Get("Math")
	require.True(t, ok)
	assert.Equal(t, []int{5, 3, 4, 5}, math)
}

func TestGet_Unknown(t *testing.T) {
	repo, err := Default()
	require.NoError(t, err)

	_, ok := repo.Get("student_001")
	assert.False(t, ok)

	_, err = repo.Lookup("student_001")
	var notFound *fgerrors.StudentNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "student_001", notFound.ID)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "missing login",
			data: "students:\n  - full_name: A\n",
			want: "login is required",
		},
		{
			name: "missing name",
			data: "students:\n  - login: a\n",
			want: "full_name is required",
		},
		{
			name: "duplicate login",
			data: "students:\n  - {login: a, full_name: A}\n  - {login: a, full_name: B}\n",
			want: "duplicate login",
		},
		{
			name: "mark out of range",
			data: "students:\n  - login: a\n    full_name: A\n    marks_and_exams:\n      Math: [5, 6]\n",
			want: "mark 6 outside 1-5",
		},
		{
			name: "marks not a mapping",
			data: "students:\n  - login: a\n    full_name: A\n    marks_and_exams: [1, 2]\n",
			want: "must map subjects",
		},
		{
			name: "duplicate subject",
			data: "students:\n  - login: a\n    full_name: A\n    marks_and_exams:\n      Math: [5]\n      Math: [4]\n",
			want: "Math",
		},
		{
			name: "not yaml",
			data: "students: [",
			want: "parse students",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOpen(t *testing.T) {
	t.Run("empty path uses fixture", func(t *testing.T) {
		repo, err := Open("")
		require.NoError(t, err)
		assert.Equal(t, 3, repo.Len())
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "students.yaml")
		data := `
students:
  - full_name: Анна Смирнова
    login: anna
    marks_and_exams:
      Chemistry: [4, 4]
    personal:
      class: 10
      bio: Химия.
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		repo, err := Open(path)
		require.NoError(t, err)
		rec, ok := repo.Get("anna")
		require.True(t, ok)
		assert.Equal(t, Record{
			FullName: "Анна Смирнова",
			Class:    10,
			Bio:      "Химия.",
			Marks:    Marks{{Subject: "Chemistry", Marks: []int{4, 4}}},
		}, rec)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "read students")
	})
}

func TestRecord_MarshalKeepsSubjectOrder(t *testing.T) {
	rec := Record{
		FullName: "Мария Петрова",
		Class:    9,
		Marks: Marks{
			{Subject: "Physics", Marks: []int{2, 4}},
			{Subject: "Art", Marks: []int{5}},
			{Subject: "Math", Marks: []int{5, 3, 4, 5}},
		},
	}

	out, err := yaml.Marshal(rec)
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, "full_name: Мария Петрова")
	assert.Contains(t, text, "Math: [5, 3, 4, 5]")
	physics := strings.Index(text, "Physics")
	art := strings.Index(text, "Art")
	math := strings.Index(text, "Math")
	assert.Less(t, physics, art)
	assert.Less(t, art, math)

	var back Record
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, rec, back)
}

func TestSubjectMarks_Average(t *testing.T) {
	assert.InDelta(t, 4.25, SubjectMarks{Marks: []int{5, 3, 4, 5}}.Average(), 1e-9)
	assert.Zero(t, SubjectMarks{}.Average())
}
