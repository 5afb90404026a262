package domain

// ScheduleStrategy controls how the nodes of one execution group are
// dispatched.
type ScheduleStrategy string

const (
	// StrategySerial dispatches the group's nodes one at a time in
	// declaration order.
	StrategySerial ScheduleStrategy = "serial"
	// StrategyBoundedParallel dispatches up to max_concurrent_tasks nodes
	// at once.
	StrategyBoundedParallel ScheduleStrategy = "bounded_parallel"
	// StrategyPriorityOrdered is bounded-parallel dispatch with submission
	// ordered by declared node priority.
	StrategyPriorityOrdered ScheduleStrategy = "priority_ordered"
)

// NodeResourceInfo is a node type's declared execution cost estimate. Nodes
// that declare nothing get a flat default from the plan builder.
type NodeResourceInfo struct {
	EstimatedCost     float64 `json:"estimated_cost"`
	EstimatedMemoryMB float64 `json:"estimated_memory_mb,omitempty"`
	Priority          int     `json:"priority,omitempty"`
}

// ExecutionGroup is a batch of mutually independent nodes. Everything in
// group N settles before group N+1 dispatches.
type ExecutionGroup struct {
	Index     int                         `json:"index"`
	NodeIDs   []string                    `json:"node_ids"`
	Strategy  ScheduleStrategy            `json:"strategy"`
	Resources map[string]NodeResourceInfo `json:"resources"`
}

func (g ExecutionGroup) TotalCost() float64 {
	var total float64
	for _, info := range g.Resources {
		total += info.EstimatedCost
	}
	return total
}

// ExecutionPlan is the ordered layering of a validated graph. For every
// edge a->b the plan guarantees GroupIndex(a) < GroupIndex(b).
type ExecutionPlan struct {
	WorkflowID    string           `json:"workflow_id"`
	Groups        []ExecutionGroup `json:"groups"`
	MaxConcurrent int              `json:"max_concurrent"`

	groupByNode map[string]int
}

func NewExecutionPlan(workflowID string, groups []ExecutionGroup, maxConcurrent int) *ExecutionPlan {
	byNode := make(map[string]int)
	for _, group := range groups {
		for _, nodeID := range group.NodeIDs {
			byNode[nodeID] = group.Index
		}
	}
	return &ExecutionPlan{
		WorkflowID:    workflowID,
		Groups:        groups,
		MaxConcurrent: maxConcurrent,
		groupByNode:   byNode,
	}
}

// GroupIndex returns the group a node was planned into, or -1 when the
// node is not part of the plan.
func (p *ExecutionPlan) GroupIndex(nodeID string) int {
	if index, ok := p.groupByNode[nodeID]; ok {
		return index
	}
	return -1
}

func (p *ExecutionPlan) TotalNodes() int {
	total := 0
	for _, group := range p.Groups {
		total += len(group.NodeIDs)
	}
	return total
}
