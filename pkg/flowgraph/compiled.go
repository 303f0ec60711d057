package flowgraph

// Runner is an immutable, executable pipeline.
// It is created by calling Compile() on a Chain builder.
//
// Runner is thread-safe and can be used concurrently for multiple
// Run() calls, each with its own Shared store. The stage order cannot
// be modified after compilation.
type Runner struct {
	name  string
	nodes []Node
	index map[string]int
}

// Name returns the pipeline name.
func (r *Runner) Name() string {
	return r.name
}

// NodeIDs returns node identifiers in execution order.
func (r *Runner) NodeIDs() []string {
	ids := make([]string, len(r.nodes))
	for i, n := range r.nodes {
		ids[i] = n.ID()
	}
	return ids
}

// HasNode checks if a node exists in the pipeline.
func (r *Runner) HasNode(id string) bool {
	_, exists := r.index[id]
	return exists
}

// Successor returns the node that runs after id, or "" for the last node
// and unknown IDs.
func (r *Runner) Successor(id string) string {
	i, ok := r.index[id]
	if !ok || i+1 >= len(r.nodes) {
		return ""
	}
	return r.nodes[i+1].ID()
}

// Predecessor returns the node that runs before id, or "" for the first
// node and unknown IDs.
func (r *Runner) Predecessor(id string) string {
	i, ok := r.index[id]
	if !ok || i == 0 {
		return ""
	}
	return r.nodes[i-1].ID()
}
