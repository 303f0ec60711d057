package teacher

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/shroroh/teacherflow/pkg/flowgraph"
	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
	"github.com/shroroh/teacherflow/pkg/flowgraph/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var fastRetry = fgerrors.NewRetryConfig(fgerrors.WithMaxAttempts(3), fgerrors.WithWait(0))

const profileReply = "Here is the profile:\n```yaml\n" + `student_profile:
  subjects:
    - name: Math
      level: high
      reasoning: Consistent high marks.
      strengths: [algebra]
      gaps: []
    - name: Physics
      level: AVERAGE
      reasoning: Marks swing between 2 and 4.
      strengths: [mechanics]
      gaps: [electricity]
` + "```\n"

// priorityReply lists the High subject first but ranks it second.
const priorityReply = "```yaml\n" + `learning_priority:
  - subject: Math
    priority: 2
    reasoning: Already strong.
  - subject: Physics
    priority: 1
    reasoning: Average level with a gap in electricity.
` + "```"

const topicsReply = "```yaml\n" + `knowledge_to_discover:
  - topic: Electric circuits
    based_from: identified gaps
    examples:
      - Circuit problems
      - Measuring current
    subtopics:
      - name: Series and parallel connections
        based_from: gap in electricity
` + "```"

const narrativeReply = "```markdown\n" + `### Итоговое заключение учителя для Мария Петрова

**Класс:** 9

#### Общая оценка
- Хорошая база по математике
- Пробелы в электричестве

#### Заключительное слово учителя
Мария, ты на верном пути!
` + "```"

// modelCall is one recorded Generate call.
type modelCall struct {
	Stage      string
	Attempt    int
	AllowCache bool
	Prompt     string
}

// scriptedModel answers each stage from its own queue. The last reply in a
// queue repeats. An error in the queue is returned instead of text.
type scriptedModel struct {
	mu      sync.Mutex
	replies map[string][]any
	calls   []modelCall
}

func newScriptedModel(replies map[string][]any) *scriptedModel {
	return &scriptedModel{replies: replies}
}

// happyModel answers every stage well on the first try.
func happyModel() *scriptedModel {
	return newScriptedModel(map[string][]any{
		StageAssessLevel: {profileReply},
		StagePrioritize:  {priorityReply},
		StagePlanTopics:  {topicsReply},
		StageSynthesize:  {narrativeReply},
	})
}

func (m *scriptedModel) Generate(ctx context.Context, prompt string, allowCache bool) (string, error) {
	info := llm.CallInfoFrom(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, modelCall{Stage: info.NodeID, Attempt: info.Attempt, AllowCache: allowCache, Prompt: prompt})

	queue := m.replies[info.NodeID]
	if len(queue) == 0 {
		return "", &fgerrors.GenerationError{Message: "no scripted reply for " + info.NodeID}
	}
	reply := queue[0]
	if len(queue) > 1 {
		m.replies[info.NodeID] = queue[1:]
	}
	switch r := reply.(type) {
	case error:
		return "", r
	case string:
		return r, nil
	default:
		panic(fmt.Sprintf("bad scripted reply %T", reply))
	}
}

func (m *scriptedModel) callsFor(stage string) []modelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []modelCall
	for _, c := range m.calls {
		if c.Stage == stage {
			out = append(out, c)
		}
	}
	return out
}

func (m *scriptedModel) stages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		out = append(out, c.Stage)
	}
	return out
}

// fixedModel returns the same reply to every prompt.
type fixedModel string

func (f fixedModel) Generate(context.Context, string, bool) (string, error) {
	return string(f), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func stageCtx(gen llm.Generator, logs *bytes.Buffer) flowgraph.Context {
	if logs == nil {
		logs = &bytes.Buffer{}
	}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return flowgraph.NewContext(context.Background(), flowgraph.WithLLM(gen), flowgraph.WithLogger(logger))
}
