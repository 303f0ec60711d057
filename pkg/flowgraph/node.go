package flowgraph

import (
	"fmt"
	"strings"

	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
)

// Stage is one typed step of a pipeline.
//
// Prepare reads the stage's inputs from the shared store and must not
// write to it. Execute does the work and is the only phase that is
// retried. Publish writes the stage's designated keys.
//
// Example:
//
//	type upper struct{}
//
//	func (upper) Prepare(s *flowgraph.Shared) (string, error) {
//	    return Input.Get(s)
//	}
//
//	func (upper) Execute(_ flowgraph.Context, in string) (string, error) {
//	    return strings.ToUpper(in), nil
//	}
//
//	func (upper) Publish(ctx flowgraph.Context, s *flowgraph.Shared, _ string, out string) error {
//	    return Output.Put(s, ctx.NodeID(), out)
//	}
type Stage[I, O any] interface {
	Prepare(shared *Shared) (I, error)
	Execute(ctx Context, in I) (O, error)
	Publish(ctx Context, shared *Shared, in I, out O) error
}

// Node is a Stage with its type parameters erased, ready to be chained.
// Create nodes with NewNode.
type Node interface {
	// ID returns the node's identifier.
	ID() string

	// RetryPolicy returns the policy applied to Execute.
	RetryPolicy() fgerrors.RetryConfig

	prepare(shared *Shared) (step, error)
}

// step is a prepared node holding its typed input and output.
type step interface {
	execute(ctx Context) error
	publish(ctx Context, shared *Shared) error
}

// NodeOption configures a node.
type NodeOption func(*nodeConfig)

type nodeConfig struct {
	retry fgerrors.RetryConfig
}

// WithRetry sets the retry policy for the node's Execute phase.
// Default: errors.DefaultRetry (three attempts, ten seconds apart).
func WithRetry(cfg fgerrors.RetryConfig) NodeOption {
	return func(c *nodeConfig) {
		c.retry = cfg
	}
}

// WithoutRetry runs Execute exactly once.
func WithoutRetry() NodeOption {
	return WithRetry(fgerrors.NoRetry)
}

type typedNode[I, O any] struct {
	id    string
	stage Stage[I, O]
	retry fgerrors.RetryConfig
}

// NewNode wraps a stage as a Node.
//
// Panics if:
//   - id is empty
//   - id contains whitespace (space, tab, newline)
//   - stage is nil
func NewNode[I, O any](id string, stage Stage[I, O], opts ...NodeOption) Node {
	if id == "" {
		panic("flowgraph: node ID cannot be empty")
	}
	if strings.ContainsAny(id, " \t\n\r") {
		panic("flowgraph: node ID cannot contain whitespace")
	}
	if stage == nil {
		panic(fmt.Sprintf("flowgraph: stage for node %s cannot be nil", id))
	}

	cfg := nodeConfig{retry: fgerrors.DefaultRetry}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &typedNode[I, O]{id: id, stage: stage, retry: cfg.retry}
}

func (n *typedNode[I, O]) ID() string {
	return n.id
}

func (n *typedNode[I, O]) RetryPolicy() fgerrors.RetryConfig {
	return n.retry
}

func (n *typedNode[I, O]) prepare(shared *Shared) (step, error) {
	in, err := n.stage.Prepare(shared)
	if err != nil {
		return nil, err
	}
	return &typedStep[I, O]{stage: n.stage, in: in}, nil
}

type typedStep[I, O any] struct {
	stage Stage[I, O]
	in    I
	out   O
}

func (s *typedStep[I, O]) execute(ctx Context) error {
	out, err := s.stage.Execute(ctx, s.in)
	if err != nil {
		return err
	}
	s.out = out
	return nil
}

func (s *typedStep[I, O]) publish(ctx Context, shared *Shared) error {
	return s.stage.Publish(ctx, shared, s.in, s.out)
}
