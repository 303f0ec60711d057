package flowgraph

import (
	"errors"
	"fmt"
	"strings"
)

// Compile validates the chain and creates an executable Runner.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks (in order):
//  1. The chain must contain at least one node
//  2. Node IDs must be non-empty and free of whitespace
//  3. Node IDs must be unique
func (c *Chain) Compile() (*Runner, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error

	if len(c.nodes) == 0 {
		errs = append(errs, ErrNoNodes)
	}

	seen := make(map[string]bool, len(c.nodes))
	for i, n := range c.nodes {
		id := n.ID()
		switch {
		case id == "":
			errs = append(errs, fmt.Errorf("%w: node at position %d", ErrInvalidNodeID, i))
			continue
		case strings.ContainsAny(id, " \t\n\r"):
			errs = append(errs, fmt.Errorf("%w: %q contains whitespace", ErrInvalidNodeID, id))
		}

		if seen[id] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateNode, id))
		}
		seen[id] = true
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return c.buildRunner(), nil
}

// buildRunner creates the immutable Runner from the builder state.
func (c *Chain) buildRunner() *Runner {
	nodes := make([]Node, len(c.nodes))
	copy(nodes, c.nodes)

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID()] = i
	}

	return &Runner{
		name:  c.name,
		nodes: nodes,
		index: index,
	}
}
