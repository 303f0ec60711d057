package flowgraph

import (
	"log/slog"

	"github.com/shroroh/teacherflow/pkg/flowgraph/checkpoint"
	"github.com/shroroh/teacherflow/pkg/flowgraph/observability"
)

// runConfig holds configuration for pipeline execution.
type runConfig struct {
	runID          string
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	checkpoints    checkpoint.Store
}

// defaultRunConfig returns the default execution configuration.
// Run-level logging is off and metrics and tracing are no-ops.
func defaultRunConfig() runConfig {
	return runConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithRunID overrides the run identifier taken from the Context.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithObservabilityLogger enables run and stage lifecycle logging.
//
// Example:
//
//	result, err := runner.Run(ctx, shared,
//	    flowgraph.WithObservabilityLogger(slog.Default()))
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics records stage and run metrics through recorder.
// A nil recorder disables metrics.
func WithMetrics(recorder observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if recorder == nil {
			recorder = observability.NoopMetrics{}
		}
		c.metrics = recorder
	}
}

// WithTracing enables OpenTelemetry spans for the run and each stage,
// using the global tracer provider.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithCheckpoints saves what the caller seeded and what each node
// published to store. A failed save is logged and does not stop the run.
func WithCheckpoints(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.checkpoints = store
	}
}
