// Package students is the student data source: normalized records looked up
// by login. The default repository is an embedded fixture; a YAML file with
// the same layout can replace it.
package students

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
)

//go:embed students.yaml
var fixture []byte

// Repository holds student records keyed by login.
// It is read-only after construction and safe for concurrent use.
type Repository struct {
	records map[string]Record
	logins  []string
}

type file struct {
	Students []entry `yaml:"students"`
}

// entry is the stored layout, normalized into a Record on load.
type entry struct {
	FullName string `yaml:"full_name"`
	Login    string `yaml:"login"`
	Marks    Marks  `yaml:"marks_and_exams"`
	Personal struct {
		Class int    `yaml:"class"`
		Bio   string `yaml:"bio"`
	} `yaml:"personal"`
}

func (e entry) normalize() Record {
	return Record{
		FullName: e.FullName,
		Class:    e.Personal.Class,
		Bio:      e.Personal.Bio,
		Marks:    e.Marks,
	}
}

// Default returns the repository built from the embedded fixture.
func Default() (*Repository, error) {
	repo, err := Parse(fixture)
	if err != nil {
		return nil, fmt.Errorf("embedded students: %w", err)
	}
	return repo, nil
}

// Open returns the repository stored at path, or Default when path is empty.
func Open(path string) (*Repository, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read students: %w", err)
	}
	repo, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return repo, nil
}

// Parse builds a repository from YAML.
func Parse(data []byte) (*Repository, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse students: %w", err)
	}

	repo := &Repository{records: make(map[string]Record, len(f.Students))}
	for i, e := range f.Students {
		login := strings.TrimSpace(e.Login)
		switch {
		case login == "":
			return nil, fmt.Errorf("student %d: login is required", i+1)
		case strings.TrimSpace(e.FullName) == "":
			return nil, fmt.Errorf("student %s: full_name is required", login)
		}
		if _, dup := repo.records[login]; dup {
			return nil, fmt.Errorf("student %s: duplicate login", login)
		}
		repo.records[login] = e.normalize()
		repo.logins = append(repo.logins, login)
	}
	return repo, nil
}

// Get returns the record for login.
func (r *Repository) Get(login string) (Record, bool) {
	rec, ok := r.records[login]
	return rec, ok
}

// Lookup is Get with a StudentNotFoundError for unknown logins.
func (r *Repository) Lookup(login string) (Record, error) {
	rec, ok := r.Get(login)
	if !ok {
		return Record{}, &fgerrors.StudentNotFoundError{ID: login}
	}
	return rec, nil
}

// Logins returns every login in file order.
func (r *Repository) Logins() []string {
	return append([]string(nil), r.logins...)
}

// Len returns the number of records.
func (r *Repository) Len() int {
	return len(r.logins)
}
