package flowgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shroroh/teacherflow/pkg/flowgraph/llm"
	"github.com/shroroh/teacherflow/pkg/flowgraph/observability"
)

// Context provides execution context to stages.
// It extends context.Context with flowgraph-specific services and metadata.
//
// Context is immutable after creation. The runner creates derived contexts
// for each node and attempt with updated NodeID, Attempt and logger.
type Context interface {
	context.Context

	// Services

	// Logger returns the configured logger, enriched with run and node context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// LLM returns the text generator, or nil if not configured.
	// Stages should check for nil before using.
	LLM() llm.Generator

	// Metadata

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// NodeID returns the current node being executed.
	// Empty string before execution starts.
	NodeID() string

	// Attempt returns the retry attempt number (1 = first attempt).
	Attempt() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger    *slog.Logger
	generator llm.Generator
	runID     string
	nodeID    string
	attempt   int
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// LLM returns the text generator.
func (c *executionContext) LLM() llm.Generator {
	return c.generator
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Attempt returns the retry attempt number.
func (c *executionContext) Attempt() int {
	return c.attempt
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with run_id, node_id, and attempt during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLLM sets the text generator stages call through.
func WithLLM(gen llm.Generator) ContextOption {
	return func(c *executionContext) {
		c.generator = gen
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID will be auto-generated.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
// The returned Context wraps the provided context.Context and adds
// flowgraph-specific services and metadata.
//
// Example:
//
//	ctx := flowgraph.NewContext(context.Background(),
//	    flowgraph.WithLLM(generator),
//	    flowgraph.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
		attempt: 1,
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// toExecutionContext adopts a caller-supplied Context, copying its services
// when it is not one of ours.
func toExecutionContext(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	return &executionContext{
		Context:   ctx,
		logger:    ctx.Logger(),
		generator: ctx.LLM(),
		runID:     ctx.RunID(),
		nodeID:    ctx.NodeID(),
		attempt:   max(ctx.Attempt(), 1),
	}
}

// forStage returns a context for one attempt of a node.
// base replaces the wrapped context.Context (span context, cancellation
// detached), and the LLM call info is attached for the journal.
func (c *executionContext) forStage(base context.Context, nodeID string, attempt int) *executionContext {
	base = llm.WithCallInfo(base, llm.CallInfo{RunID: c.runID, NodeID: nodeID, Attempt: attempt})
	return &executionContext{
		Context:   base,
		logger:    observability.EnrichLogger(c.logger, c.runID, nodeID, attempt),
		generator: c.generator,
		runID:     c.runID,
		nodeID:    nodeID,
		attempt:   attempt,
	}
}
