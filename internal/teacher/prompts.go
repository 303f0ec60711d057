package teacher

import (
	"embed"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shroroh/teacherflow/pkg/flowgraph/template"
)

//go:embed prompts/*.md
var promptFS embed.FS

var (
	assessPrompt     = mustPrompt(StageAssessLevel)
	prioritizePrompt = mustPrompt(StagePrioritize)
	planPrompt       = mustPrompt(StagePlanTopics)
	synthesizePrompt = mustPrompt(StageSynthesize)
)

func mustPrompt(stage string) *template.Prompt {
	text, err := promptFS.ReadFile("prompts/" + stage + ".md")
	if err != nil {
		panic("teacher: missing prompt " + stage)
	}
	return template.NewPrompt(stage, string(text), template.WithFormatter(yamlValue))
}

// yamlValue renders structured prompt values as YAML; strings and numbers
// are inserted as they are.
func yamlValue(v any) (string, error) {
	switch v.(type) {
	case string, int, bool:
		return template.DefaultFormatter(v)
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}
