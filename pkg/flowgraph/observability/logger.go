// Package observability provides the pipeline's logging helpers, metrics,
// and tracing.
//
// Logging uses log/slog. Metrics and tracing use OpenTelemetry through the
// global providers and are opt-in; NoopMetrics and NoopSpanManager stand in
// when they are disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger.
// Returns a new logger with run_id, node_id, and attempt fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "assess_level", 1)
//	enriched.Info("calling model") // includes run_id, node_id, attempt
func EnrichLogger(logger *slog.Logger, runID, nodeID string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
	)
}

// LogRunStart logs the start of a pipeline run.
func LogRunStart(logger *slog.Logger, runID string, stages int) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run starting",
		slog.String("run_id", runID),
		slog.Int("stages", stages),
	)
}

// LogRunComplete logs successful pipeline completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, stages int) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("stages_completed", stages),
	)
}

// LogRunError logs pipeline failure.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, failedStage string) {
	if logger == nil {
		return
	}
	logger.Error("pipeline run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("failed_stage", failedStage),
	)
}

// LogStageStart logs that a stage is about to run.
func LogStageStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Info("stage starting",
		slog.String("node_id", nodeID),
	)
}

// LogStageComplete logs successful stage completion.
func LogStageComplete(logger *slog.Logger, nodeID string, attempts int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("stage completed",
		slog.String("node_id", nodeID),
		slog.Int("attempts", attempts),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogStageError logs a stage failure after its retries are spent.
func LogStageError(logger *slog.Logger, nodeID string, attempts int, err error) {
	if logger == nil {
		return
	}
	logger.Error("stage failed",
		slog.String("node_id", nodeID),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
}

// LogAttemptFailed logs a failed attempt that will be retried.
func LogAttemptFailed(logger *slog.Logger, nodeID string, attempt int, err error, wait time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("stage attempt failed, retrying",
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
		slog.Duration("wait", wait),
	)
}

// LogGeneration logs one call to the generation client.
func LogGeneration(logger *slog.Logger, promptBytes int, cacheHit bool, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("generation completed",
		slog.Int("prompt_bytes", promptBytes),
		slog.Bool("cache_hit", cacheHit),
		slog.Float64("duration_ms", durationMs),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
