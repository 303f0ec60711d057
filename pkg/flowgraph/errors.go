// Package flowgraph provides a linear, typed-stage pipeline engine for LLM workflows.
package flowgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for chain building and compilation.
var (
	// ErrNoNodes indicates Compile() was called on an empty chain.
	ErrNoNodes = errors.New("chain has no nodes")

	// ErrInvalidNodeID indicates a node ID is empty or contains whitespace.
	ErrInvalidNodeID = errors.New("invalid node ID")

	// ErrDuplicateNode indicates two nodes share an ID.
	ErrDuplicateNode = errors.New("duplicate node ID")
)

// Sentinel errors for execution.
var (
	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrNilShared indicates Run() was called without a shared store.
	ErrNilShared = errors.New("shared store cannot be nil")

	// ErrKeyOwned indicates a write to a key owned by someone else.
	ErrKeyOwned = errors.New("key owned by another writer")
)

// NodeError wraps an error with node context.
// It provides information about which node failed and in which phase.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the phase that failed ("prepare", "execute", "publish").
	Op string
	// Attempts is the number of Execute attempts made (0 if Prepare failed).
	Attempts int
	// Err is the underlying error from the stage.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.Op == "execute" && e.Attempts > 1 {
		return fmt.Sprintf("node %s: %s (after %d attempts): %v", e.NodeID, e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from stage execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError reports a run stopped because the caller's context
// ended before a node started.
type CancellationError struct {
	// NodeID is the node that was about to execute.
	NodeID string
	// Completed lists the nodes that finished before cancellation.
	Completed []string
	// Cause is the underlying cancellation cause (context.Canceled or context.DeadlineExceeded).
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}
