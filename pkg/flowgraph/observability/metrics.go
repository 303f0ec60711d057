package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for pipeline metrics.
const MeterName = "teacherflow"

// MetricsRecorder records pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordStageExecution records a finished stage with its attempt count.
	RecordStageExecution(ctx context.Context, nodeID string, attempts int, duration time.Duration, err error)

	// RecordAttempt records a single Execute attempt.
	RecordAttempt(ctx context.Context, nodeID string, attempt int, err error)

	// RecordRun records a pipeline run completion.
	RecordRun(ctx context.Context, success bool, duration time.Duration)

	// RecordCacheLookup records whether a prompt was served from cache.
	RecordCacheLookup(ctx context.Context, hit bool)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	stageExecutions metric.Int64Counter
	stageLatency    metric.Float64Histogram
	stageErrors     metric.Int64Counter
	stageAttempts   metric.Int64Counter
	runs            metric.Int64Counter
	runLatency      metric.Float64Histogram
	cacheLookups    metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter(MeterName))
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	var (
		m   otelMetrics
		err error
	)

	if m.stageExecutions, err = meter.Int64Counter("teacherflow.stage.executions",
		metric.WithDescription("Number of completed stage executions"),
	); err != nil {
		return nil, err
	}

	if m.stageLatency, err = meter.Float64Histogram("teacherflow.stage.latency_ms",
		metric.WithDescription("Stage latency including retries in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.stageErrors, err = meter.Int64Counter("teacherflow.stage.errors",
		metric.WithDescription("Number of stages that failed"),
	); err != nil {
		return nil, err
	}

	if m.stageAttempts, err = meter.Int64Counter("teacherflow.stage.attempts",
		metric.WithDescription("Number of Execute attempts"),
	); err != nil {
		return nil, err
	}

	if m.runs, err = meter.Int64Counter("teacherflow.run.count",
		metric.WithDescription("Number of pipeline runs"),
	); err != nil {
		return nil, err
	}

	if m.runLatency, err = meter.Float64Histogram("teacherflow.run.latency_ms",
		metric.WithDescription("Pipeline run latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.cacheLookups, err = meter.Int64Counter("teacherflow.llm.cache",
		metric.WithDescription("Prompt cache lookups by outcome"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider; set it with
// otel.SetMeterProvider before the first call.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderFor builds a recorder on a specific meter.
func NewMetricsRecorderFor(meter metric.Meter) (MetricsRecorder, error) {
	return newOtelMetrics(meter)
}

func (m *otelMetrics) RecordStageExecution(ctx context.Context, nodeID string, attempts int, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.Bool("success", err == nil),
	)

	m.stageExecutions.Add(ctx, 1, attrs)
	m.stageLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.stageErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("node_id", nodeID)))
	}
}

func (m *otelMetrics) RecordAttempt(ctx context.Context, nodeID string, attempt int, err error) {
	m.stageAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.Int("attempt", attempt),
		attribute.Bool("success", err == nil),
	))
}

func (m *otelMetrics) RecordRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
