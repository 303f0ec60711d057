package flowgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNodeError_Error tests NodeError formatting.
func TestNodeError_Error(t *testing.T) {
	err := &NodeError{
		NodeID: "process",
		Op:     "execute",
		Err:    errors.New("connection failed"),
	}

	assert.Equal(t, "node process: execute: connection failed", err.Error())
}

// TestNodeError_Error_WithAttempts tests that retried failures mention the attempt count.
func TestNodeError_Error_WithAttempts(t *testing.T) {
	err := &NodeError{
		NodeID:   "prioritize",
		Op:       "execute",
		Attempts: 3,
		Err:      errors.New("no fenced block"),
	}

	assert.Equal(t, "node prioritize: execute (after 3 attempts): no fenced block", err.Error())
}

// TestNodeError_Unwrap tests NodeError unwrapping.
func TestNodeError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying")
	err := &NodeError{
		NodeID: "test",
		Op:     "prepare",
		Err:    underlying,
	}

	assert.ErrorIs(t, err, underlying)
}

// TestPanicError_Error tests PanicError formatting.
func TestPanicError_Error(t *testing.T) {
	err := &PanicError{
		NodeID: "crash",
		Value:  "unexpected nil",
		Stack:  "goroutine 1 [running]:\n...",
	}

	assert.Equal(t, "node crash panicked: unexpected nil", err.Error())
}

// TestCancellationError_Error tests cancellation error formatting.
func TestCancellationError_Error(t *testing.T) {
	err := &CancellationError{
		NodeID: "pending",
		Cause:  context.Canceled,
	}

	assert.Equal(t, "cancelled before node pending: context canceled", err.Error())
}

// TestCancellationError_Unwrap tests that the cause is reachable.
func TestCancellationError_Unwrap(t *testing.T) {
	err := &CancellationError{
		NodeID: "pending",
		Cause:  context.DeadlineExceeded,
	}

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestSentinelErrors tests that sentinel errors are distinct.
func TestSentinelErrors(t *testing.T) {
	sentinels := []error{ErrNoNodes, ErrInvalidNodeID, ErrDuplicateNode, ErrNilContext, ErrNilShared, ErrKeyOwned}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}
