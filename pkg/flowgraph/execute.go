package flowgraph

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shroroh/teacherflow/pkg/flowgraph/checkpoint"
	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
	"github.com/shroroh/teacherflow/pkg/flowgraph/observability"
)

// Status is the terminal state of a run.
type Status string

const (
	// StatusDone means every node completed.
	StatusDone Status = "done"
	// StatusFailed means a node failed or the run was cancelled.
	StatusFailed Status = "failed"
)

// Result summarizes a run. Stage outputs live in the Shared store.
type Result struct {
	// RunID identifies the run in logs, spans and the LLM journal.
	RunID string
	// Status is StatusDone or StatusFailed.
	Status Status
	// Completed lists the nodes that finished, in order.
	Completed []string
	// Attempts records how many Execute attempts each started node made.
	Attempts map[string]int
	// Duration is the wall time of the run.
	Duration time.Duration
}

// Run executes every node in order against shared.
//
// For each node the runner calls Prepare, then Execute under the node's
// retry policy, then Publish. The first failure stops the run and is
// returned wrapped in *NodeError; later nodes are not invoked.
//
// The caller's context is checked only before each node starts. Once a
// node is running, its generation calls and retry waits are not cancelled.
//
// Example:
//
//	ctx := flowgraph.NewContext(context.Background(), flowgraph.WithLLM(gen))
//	result, err := runner.Run(ctx, shared)
//	if err != nil {
//	    var nodeErr *flowgraph.NodeError
//	    if errors.As(err, &nodeErr) { ... }
//	}
func (r *Runner) Run(ctx Context, shared *Shared, opts ...RunOption) (result Result, runErr error) {
	result = Result{Status: StatusFailed, Attempts: make(map[string]int, len(r.nodes))}
	if ctx == nil {
		return result, ErrNilContext
	}
	if shared == nil {
		return result, ErrNilShared
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ec := toExecutionContext(ctx)
	if cfg.runID != "" && cfg.runID != ec.runID {
		clone := *ec
		clone.runID = cfg.runID
		ec = &clone
	}
	result.RunID = ec.runID

	startTime := time.Now()
	observability.LogRunStart(cfg.logger, ec.runID, len(r.nodes))

	var tracingCtx context.Context = ec.Context
	var runSpan trace.Span
	if cfg.tracingEnabled {
		tracingCtx, runSpan = cfg.spans.StartRunSpan(tracingCtx, r.name, ec.runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	r.saveCheckpoint(ec, shared, &cfg, CallerOwner, 0, 0)

	lastNode := ""
	for i, node := range r.nodes {
		id := node.ID()
		lastNode = id

		if err := ec.Err(); err != nil {
			runErr = &CancellationError{
				NodeID:    id,
				Completed: append([]string(nil), result.Completed...),
				Cause:     err,
			}
			break
		}

		attempts, err := r.runNode(tracingCtx, ec, node, shared, &cfg)
		result.Attempts[id] = attempts
		if err != nil {
			runErr = err
			break
		}
		result.Completed = append(result.Completed, id)
		r.saveCheckpoint(ec, shared, &cfg, id, i+1, attempts)
	}

	result.Duration = time.Since(startTime)
	durationMs := float64(result.Duration.Milliseconds())
	cfg.metrics.RecordRun(tracingCtx, runErr == nil, result.Duration)

	if runErr != nil {
		observability.LogRunError(cfg.logger, ec.runID, runErr, durationMs, lastNode)
		return result, runErr
	}

	result.Status = StatusDone
	observability.LogRunComplete(cfg.logger, ec.runID, durationMs, len(result.Completed))
	return result, nil
}

// saveCheckpoint records the keys owner holds. Nothing is saved for an
// owner without keys.
func (r *Runner) saveCheckpoint(ec *executionContext, shared *Shared, cfg *runConfig, owner string, seq, attempts int) {
	if cfg.checkpoints == nil {
		return
	}
	outputs := shared.Snapshot(owner)
	if len(outputs) == 0 {
		return
	}
	err := cfg.checkpoints.Save(checkpoint.Checkpoint{
		RunID:     ec.runID,
		Pipeline:  r.name,
		NodeID:    owner,
		Sequence:  seq,
		Attempts:  attempts,
		Timestamp: time.Now().UTC(),
		Outputs:   outputs,
	})
	if err != nil {
		logger := ec.Logger()
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("checkpoint not saved",
			slog.String("run_id", ec.runID),
			slog.String("node_id", owner),
			slog.String("error", err.Error()),
		)
	}
}

// runNode executes one node with stage-level observability.
func (r *Runner) runNode(tracingCtx context.Context, ec *executionContext, node Node, shared *Shared, cfg *runConfig) (int, error) {
	id := node.ID()
	observability.LogStageStart(cfg.logger, id)

	nodeCtx := tracingCtx
	var nodeSpan trace.Span
	if cfg.tracingEnabled {
		nodeCtx, nodeSpan = cfg.spans.StartStageSpan(tracingCtx, id)
	}

	start := time.Now()
	attempts, err := r.executeNode(context.WithoutCancel(nodeCtx), ec, node, shared, cfg)
	duration := time.Since(start)

	cfg.metrics.RecordStageExecution(nodeCtx, id, attempts, duration, err)
	if cfg.tracingEnabled {
		cfg.spans.EndSpanWithError(nodeSpan, err)
	}

	if err != nil {
		observability.LogStageError(cfg.logger, id, attempts, err)
		return attempts, err
	}
	observability.LogStageComplete(cfg.logger, id, attempts, float64(duration.Milliseconds()))
	return attempts, nil
}

// executeNode runs Prepare, the retried Execute and Publish with panic recovery.
// base is already detached from the caller's cancellation.
func (r *Runner) executeNode(base context.Context, ec *executionContext, node Node, shared *Shared, cfg *runConfig) (attempts int, err error) {
	id := node.ID()

	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{
				NodeID: id,
				Value:  rec,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	st, err := node.prepare(shared)
	if err != nil {
		return 0, &NodeError{NodeID: id, Op: "prepare", Err: err}
	}

	policy := node.RetryPolicy()
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		observability.LogAttemptFailed(cfg.logger, id, attempt, err, wait)
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
	}

	res := fgerrors.WithRetryContext(base, policy, func(c context.Context, attempt int) (struct{}, error) {
		err := st.execute(ec.forStage(c, id, attempt))
		cfg.metrics.RecordAttempt(c, id, attempt, err)
		if err != nil && cfg.tracingEnabled {
			cfg.spans.AddSpanEvent(c, "attempt.failed",
				attribute.Int("attempt", attempt),
				attribute.String("error", err.Error()),
			)
		}
		return struct{}{}, err
	})
	if res.Err != nil {
		return res.Attempts, &NodeError{
			NodeID:   id,
			Op:       "execute",
			Attempts: res.Attempts,
			Err:      stageError(res.Err),
		}
	}

	if err := st.publish(ec.forStage(base, id, res.Attempts), shared); err != nil {
		return res.Attempts, &NodeError{NodeID: id, Op: "publish", Attempts: res.Attempts, Err: err}
	}
	return res.Attempts, nil
}

// stageError strips the retry loop's categorization so callers see the
// stage's own error.
func stageError(err error) error {
	if cat, ok := err.(*fgerrors.CategorizedError); ok && cat.Err != nil {
		return cat.Err
	}
	return err
}
