package flowgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
	"github.com/shroroh/teacherflow/pkg/flowgraph/observability"
)

// testLogHandler captures log records for testing.
type testLogHandler struct {
	mu    sync.Mutex
	buf   *bytes.Buffer
	level slog.Level
}

func newTestLogHandler() *testLogHandler {
	return &testLogHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *testLogHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *testLogHandler) getRecords() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var records []map[string]any
	for _, line := range bytes.Split(h.buf.Bytes(), []byte("\n")) {
		if len(line) > 0 {
			var m map[string]any
			if err := json.Unmarshal(line, &m); err == nil {
				records = append(records, m)
			}
		}
	}
	return records
}

func countMessages(records []map[string]any) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		msg, _ := r["msg"].(string)
		counts[msg]++
	}
	return counts
}

// flakyRunner has one stage that fails once with a malformed response.
func flakyRunner(t *testing.T) *Runner {
	t.Helper()
	stage := funcStage[struct{}, struct{}]{
		execute: func(ctx Context, _ struct{}) (struct{}, error) {
			if ctx.Attempt() == 1 {
				return struct{}{}, fgerrors.NewMalformed(fgerrors.ReasonNoFencedBlock, "", nil)
			}
			return struct{}{}, nil
		},
	}
	runner, err := NewChain().
		Named("teacher").
		Then(NewNode("flaky", stage, WithRetry(fastRetry))).
		Then(NewNode("one", addStage{from: keyInput, to: keyFirst, delta: 1})).
		Compile()
	require.NoError(t, err)
	return runner
}

func TestRun_WithObservabilityLogger(t *testing.T) {
	h := newTestLogHandler()

	ctx := NewContext(context.Background(), WithContextRunID("test-run-123"))
	_, err := linearRunner(nil).Run(ctx, seeded(0), WithObservabilityLogger(slog.New(h)))
	require.NoError(t, err)

	records := h.getRecords()
	counts := countMessages(records)

	assert.Equal(t, 1, counts["pipeline run starting"])
	assert.Equal(t, 1, counts["pipeline run completed"])
	assert.Equal(t, 3, counts["stage starting"])
	assert.Equal(t, 3, counts["stage completed"])

	for _, r := range records {
		if r["msg"] == "pipeline run starting" {
			assert.Equal(t, "test-run-123", r["run_id"])
		}
	}
}

func TestRun_WithObservabilityLogger_Error(t *testing.T) {
	h := newTestLogHandler()

	ctx := NewContext(context.Background(), WithContextRunID("error-run"))
	_, err := linearRunner(nil).Run(ctx, NewShared(), WithObservabilityLogger(slog.New(h)))
	require.Error(t, err)

	var foundStageError, foundRunError bool
	for _, r := range h.getRecords() {
		switch r["msg"] {
		case "stage failed":
			foundStageError = true
			assert.Equal(t, "one", r["node_id"])
		case "pipeline run failed":
			foundRunError = true
			assert.Equal(t, "error-run", r["run_id"])
		}
	}

	assert.True(t, foundStageError, "Expected 'stage failed' log")
	assert.True(t, foundRunError, "Expected 'pipeline run failed' log")
}

func TestRun_LogsRetries(t *testing.T) {
	h := newTestLogHandler()

	_, err := flakyRunner(t).Run(testCtx(), seeded(0), WithObservabilityLogger(slog.New(h)))
	require.NoError(t, err)

	assert.Equal(t, 1, countMessages(h.getRecords())["stage attempt failed, retrying"])
}

func TestRun_StageLoggerIsEnriched(t *testing.T) {
	h := newTestLogHandler()
	var logger *slog.Logger

	stage := funcStage[struct{}, struct{}]{
		execute: func(ctx Context, _ struct{}) (struct{}, error) {
			logger = ctx.Logger()
			ctx.Logger().Info("working")
			return struct{}{}, nil
		},
	}
	runner, err := NewChain().Then(NewNode("enriched", stage)).Compile()
	require.NoError(t, err)

	base := slog.New(h)
	_, err = runner.Run(NewContext(context.Background(), WithLogger(base)), NewShared())
	require.NoError(t, err)

	assert.NotSame(t, base, logger)
	assert.Equal(t, 1, countMessages(h.getRecords())["working"])
}

func TestRun_WithMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	recorder, err := observability.NewMetricsRecorderFor(provider.Meter(observability.MeterName))
	require.NoError(t, err)

	_, err = flakyRunner(t).Run(testCtx(), seeded(0), WithMetrics(recorder))
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(2), sums["teacherflow.stage.executions"])
	assert.Equal(t, int64(3), sums["teacherflow.stage.attempts"])
	assert.Equal(t, int64(1), sums["teacherflow.run.count"])
	assert.Zero(t, sums["teacherflow.stage.errors"])
}

func TestRun_WithTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	_, err := flakyRunner(t).Run(testCtx(), seeded(0), WithTracing(true))
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	byName := make(map[string]tracetest.SpanStub)
	for _, s := range spans {
		byName[s.Name] = s
	}

	run, ok := byName["teacherflow.run"]
	require.True(t, ok)
	flaky, ok := byName["teacherflow.stage.flaky"]
	require.True(t, ok)
	_, ok = byName["teacherflow.stage.one"]
	require.True(t, ok)

	assert.Equal(t, run.SpanContext.SpanID(), flaky.Parent.SpanID())
	require.Len(t, flaky.Events, 1)
	assert.Equal(t, "attempt.failed", flaky.Events[0].Name)
}

func TestRun_WithAllObservability(t *testing.T) {
	h := newTestLogHandler()

	ctx := NewContext(context.Background(), WithContextRunID("full-obs-run"))
	result, err := linearRunner(nil).Run(ctx, seeded(0),
		WithObservabilityLogger(slog.New(h)),
		WithMetrics(observability.NewMetricsRecorder()),
		WithTracing(true))

	require.NoError(t, err)
	assert.Equal(t, StatusDone, result.Status)
	assert.NotEmpty(t, h.getRecords())
}
