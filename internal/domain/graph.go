package domain

// WorkflowGraph is the validated, adjacency-indexed form of a definition.
// Disabled nodes and connections are already filtered out; every reference
// and port type has been checked; the graph is acyclic.
type WorkflowGraph struct {
	Definition *WorkflowDefinition

	// Order preserves declaration order of the active nodes; it is the
	// deterministic tie-break for serial dispatch.
	Order []string
	Nodes map[string]*WorkflowNode
	// Infos holds the resolved plugin contract per node id.
	Infos map[string]NodeInfo

	Outgoing map[string][]WorkflowConnection
	Incoming map[string][]WorkflowConnection
}

func (g *WorkflowGraph) Upstream(nodeID string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, conn := range g.Incoming[nodeID] {
		if !seen[conn.FromNode] {
			seen[conn.FromNode] = true
			out = append(out, conn.FromNode)
		}
	}
	return out
}

func (g *WorkflowGraph) Downstream(nodeID string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, conn := range g.Outgoing[nodeID] {
		if !seen[conn.ToNode] {
			seen[conn.ToNode] = true
			out = append(out, conn.ToNode)
		}
	}
	return out
}

// ConsumerCount returns how many enabled connections read from the given
// output slot. The data flow service uses it to reference-count buffers.
func (g *WorkflowGraph) ConsumerCount(nodeID, port string) int {
	count := 0
	for _, conn := range g.Outgoing[nodeID] {
		if conn.FromPort == port {
			count++
		}
	}
	return count
}
