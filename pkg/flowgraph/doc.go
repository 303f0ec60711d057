/*
Package flowgraph runs fixed, linear pipelines of typed LLM stages.

# Overview

A pipeline is a chain of stages executed in order over one Shared store.
Each stage reads its inputs, calls a text generator, validates what came
back, and publishes a result for the stages after it. There is no
branching, fan-out or looping: the order is fixed at Compile() time.

# Stages

A stage implements three phases:

	type Stage[I, O any] interface {
	    Prepare(shared *Shared) (I, error)
	    Execute(ctx Context, in I) (O, error)
	    Publish(ctx Context, shared *Shared, in I, out O) error
	}

Prepare is a pure read. Execute is the only phase that is retried.
Publish writes the stage's keys.

# Shared Store

Keys are typed handles over string names:

	var (
	    Topic = flowgraph.NewKey[string]("topic")
	    Ideas = flowgraph.NewKey[[]string]("ideas")
	)

	shared := flowgraph.NewShared()
	_ = Topic.Seed(shared, "fractions")

Reading a key nobody wrote fails with errors.MissingInputError. The first
writer of a key owns it; writing someone else's key fails with ErrKeyOwned.
Shared.Keys() reports the order keys were first written.

# Basic Usage

	runner, err := flowgraph.NewChain().
	    Then(flowgraph.NewNode("brainstorm", brainstorm{})).
	    Then(flowgraph.NewNode("choose", choose{})).
	    Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := flowgraph.NewContext(context.Background(), flowgraph.WithLLM(gen))
	result, err := runner.Run(ctx, shared)

# Retries

Execute runs under the node's errors.RetryConfig (default: three attempts,
ten seconds apart). Generation and malformed-response errors are retried;
anything else fails immediately. The 1-based attempt number is available
as ctx.Attempt(), so stages can bypass the response cache on retries:

	raw, err := ctx.LLM().Generate(ctx, prompt, useCache && ctx.Attempt() == 1)

Override the policy per node:

	flowgraph.NewNode("prioritize", stage,
	    flowgraph.WithRetry(errors.NewRetryConfig(errors.WithMaxAttempts(5))))

# Cancellation

The caller's context is checked before each stage starts. A stage that has
started runs to completion, including its retry waits; the run then stops
with a CancellationError before the next stage.

# Observability

Enable logging, metrics, and tracing:

	result, err := runner.Run(ctx, shared,
	    flowgraph.WithObservabilityLogger(logger),
	    flowgraph.WithMetrics(observability.NewMetricsRecorder()),
	    flowgraph.WithTracing(true))

Logs include structured fields: run_id, node_id, attempts, duration_ms.
OpenTelemetry metrics: teacherflow.stage.executions, teacherflow.stage.attempts, etc.
OpenTelemetry tracing: teacherflow.run > teacherflow.stage.{id} spans.

# Checkpoints

WithCheckpoints records the caller's seeded keys and, after each node,
the keys that node owns:

	store, _ := checkpoint.NewSQLiteStore("runs.db")
	result, err := runner.Run(ctx, shared, flowgraph.WithCheckpoints(store))

Checkpoints are a record of the run; a failed save is logged and the run
continues.

# Error Handling

Errors include context about which node failed:

	var nodeErr *flowgraph.NodeError
	if errors.As(err, &nodeErr) {
	    log.Printf("node %s failed in %s: %v", nodeErr.NodeID, nodeErr.Op, nodeErr.Err)
	}

The stage's own error is reachable with errors.As, so callers can match
MissingInputError or MalformedResponseError directly. Panics in stages are
recovered and converted to PanicError with stack trace.

# Thread Safety

  - Chain is NOT safe for concurrent use during construction
  - Runner IS safe for concurrent use, one Shared store per run
  - Shared IS safe for concurrent use

# Subpackages

  - cache: Prompt-keyed response stores (memory, SQLite, LRU)
  - checkpoint: Per-stage output records (memory, SQLite)
  - config: Map-backed settings loaded from YAML or JSON
  - errors: Error kinds, categorization and retry
  - extract: Fenced YAML extraction from model replies
  - llm: Provider clients, caching generator and call journal
  - observability: Logging, metrics, and tracing helpers
  - registry: Named factories for providers and formats
  - template: ${var} prompt rendering
*/
package flowgraph
