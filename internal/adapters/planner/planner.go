package planner

import (
	"log/slog"
	"sort"

	"github.com/flowforge-io/flowforge/internal/domain"
)

// Planner layers a validated graph into execution groups by iterative
// topological collection: every pass gathers all nodes whose dependencies
// were satisfied by earlier groups. Nodes within one group are mutually
// independent. Planning the same graph twice yields identical group
// membership and order.
type Planner struct {
	config domain.EngineConfig
	logger *slog.Logger
}

func New(config domain.EngineConfig, logger *slog.Logger) *Planner {
	return &Planner{
		config: config,
		logger: logger.With("component", "planner"),
	}
}

func (pl *Planner) Build(graph *domain.WorkflowGraph) (*domain.ExecutionPlan, error) {
	remaining := make(map[string]int, len(graph.Nodes))
	for _, nodeID := range graph.Order {
		remaining[nodeID] = len(graph.Upstream(nodeID))
	}

	placed := make(map[string]bool, len(graph.Nodes))
	var groups []domain.ExecutionGroup

	for len(placed) < len(graph.Nodes) {
		// declaration order keeps the layering deterministic
		var ready []string
		for _, nodeID := range graph.Order {
			if !placed[nodeID] && remaining[nodeID] == 0 {
				ready = append(ready, nodeID)
			}
		}
		if len(ready) == 0 {
			// unreachable on a parser-validated graph; cycles are caught
			// upstream
			return nil, domain.ErrInvalidInput
		}

		group := domain.ExecutionGroup{
			Index:     len(groups),
			NodeIDs:   ready,
			Resources: make(map[string]domain.NodeResourceInfo, len(ready)),
		}
		for _, nodeID := range ready {
			group.Resources[nodeID] = pl.resourceInfo(graph.Infos[nodeID])
		}
		group.Strategy = pl.chooseStrategy(group)
		if group.Strategy == domain.StrategyPriorityOrdered {
			orderByPriority(group.NodeIDs, group.Resources)
		}
		groups = append(groups, group)

		for _, nodeID := range ready {
			placed[nodeID] = true
			for _, downstream := range graph.Downstream(nodeID) {
				remaining[downstream]--
			}
		}
	}

	plan := domain.NewExecutionPlan(graph.Definition.ID, groups, pl.config.MaxConcurrentTasks)

	pl.logger.Debug("execution plan built",
		"workflow_id", plan.WorkflowID,
		"groups", len(plan.Groups),
		"nodes", plan.TotalNodes(),
		"max_concurrent", plan.MaxConcurrent)

	return plan, nil
}

func (pl *Planner) resourceInfo(info domain.NodeInfo) domain.NodeResourceInfo {
	if info.Resources != nil {
		res := *info.Resources
		if res.EstimatedCost <= 0 {
			res.EstimatedCost = pl.config.DefaultNodeCost
		}
		return res
	}
	return domain.NodeResourceInfo{EstimatedCost: pl.config.DefaultNodeCost}
}

// chooseStrategy picks serial dispatch for single-node or expensive
// groups, priority ordering when any member declares a priority, and
// bounded-parallel otherwise.
func (pl *Planner) chooseStrategy(group domain.ExecutionGroup) domain.ScheduleStrategy {
	if len(group.NodeIDs) == 1 {
		return domain.StrategySerial
	}
	if pl.config.SerialCostThreshold > 0 && group.TotalCost() > pl.config.SerialCostThreshold {
		return domain.StrategySerial
	}
	for _, info := range group.Resources {
		if info.Priority != 0 {
			return domain.StrategyPriorityOrdered
		}
	}
	return domain.StrategyBoundedParallel
}

// orderByPriority sorts descending by declared priority, keeping
// declaration order as the stable tie-break.
func orderByPriority(nodeIDs []string, resources map[string]domain.NodeResourceInfo) {
	sort.SliceStable(nodeIDs, func(i, j int) bool {
		return resources[nodeIDs[i]].Priority > resources[nodeIDs[j]].Priority
	})
}
