package flowgraph

import (
	"sync"
)

// Chain is a mutable builder for a linear pipeline.
// Use NewChain to create a chain, then call Then once per stage in the
// order the stages must run.
//
// Chain is NOT thread-safe during building. Use a single goroutine
// to construct the chain, then call Compile() to create an immutable
// Runner that can be safely shared.
//
// Example:
//
//	runner, err := flowgraph.NewChain().
//	    Then(flowgraph.NewNode("fetch", fetchStage{})).
//	    Then(flowgraph.NewNode("summarize", summarizeStage{})).
//	    Compile()
type Chain struct {
	mu    sync.RWMutex
	name  string
	nodes []Node
}

// NewChain creates an empty chain builder.
func NewChain() *Chain {
	return &Chain{name: "pipeline"}
}

// Named sets the pipeline name reported in logs and spans.
// Returns the chain for method chaining.
func (c *Chain) Named(name string) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name != "" {
		c.name = name
	}
	return c
}

// Then appends a node to the end of the chain.
// Returns the chain for method chaining.
//
// Panics if node is nil. ID validation happens at Compile() time.
func (c *Chain) Then(node Node) *Chain {
	if node == nil {
		panic("flowgraph: node cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nodes = append(c.nodes, node)
	return c
}

// Len returns the number of nodes added so far.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}
