package parser

import (
	"fmt"
	"log/slog"

	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

// Parser validates raw workflow definitions into typed graph models. It
// has no side effects: the same definition always parses to an equivalent
// graph, and a failed parse reports every issue found, not only the
// first.
type Parser struct {
	registry ports.NodeRegistryPort
	logger   *slog.Logger
}

func New(registry ports.NodeRegistryPort, logger *slog.Logger) *Parser {
	return &Parser{
		registry: registry,
		logger:   logger.With("component", "parser"),
	}
}

func (p *Parser) Parse(def *domain.WorkflowDefinition) (*domain.WorkflowGraph, error) {
	verr := &domain.ValidationError{WorkflowID: def.ID}

	graph := &domain.WorkflowGraph{
		Definition: def,
		Nodes:      make(map[string]*domain.WorkflowNode),
		Infos:      make(map[string]domain.NodeInfo),
		Outgoing:   make(map[string][]domain.WorkflowConnection),
		Incoming:   make(map[string][]domain.WorkflowConnection),
	}

	p.collectNodes(def, graph, verr)
	if len(graph.Nodes) == 0 {
		verr.Add(domain.ValidationIssue{
			Code:    domain.IssueEmptyWorkflow,
			Message: "workflow has no enabled nodes",
		})
		return nil, verr
	}

	p.collectConnections(def, graph, verr)
	p.checkRequiredInputs(graph, verr)
	p.checkCycles(graph, verr)

	if len(verr.Issues) > 0 {
		p.logger.Debug("definition failed validation",
			"workflow_id", def.ID,
			"issues", len(verr.Issues))
		return nil, verr
	}

	p.logger.Debug("definition parsed",
		"workflow_id", def.ID,
		"nodes", len(graph.Nodes),
		"connections", len(def.Connections))

	return graph, nil
}

func (p *Parser) collectNodes(def *domain.WorkflowDefinition, graph *domain.WorkflowGraph, verr *domain.ValidationError) {
	for i := range def.Nodes {
		node := &def.Nodes[i]
		if !node.IsEnabled() {
			continue
		}
		if _, dup := graph.Nodes[node.ID]; dup {
			verr.Add(domain.ValidationIssue{
				Code:    domain.IssueDuplicateID,
				NodeID:  node.ID,
				Message: "node id appears more than once",
			})
			continue
		}

		plugin, err := p.registry.Get(node.Type)
		if err != nil {
			verr.Add(domain.ValidationIssue{
				Code:    domain.IssueUnknownNodeType,
				NodeID:  node.ID,
				Message: fmt.Sprintf("node type %q is not registered", node.Type),
			})
			continue
		}

		info := plugin.Info()
		graph.Nodes[node.ID] = node
		graph.Infos[node.ID] = info
		graph.Order = append(graph.Order, node.ID)

		p.validateParameters(node, info, verr)
	}
}

func (p *Parser) validateParameters(node *domain.WorkflowNode, info domain.NodeInfo, verr *domain.ValidationError) {
	for _, param := range info.Parameters {
		value, present := node.Parameters[param.Name]
		if !present {
			if param.Required && param.Default == nil {
				verr.Add(domain.ValidationIssue{
					Code:    domain.IssueBadParameter,
					NodeID:  node.ID,
					Message: fmt.Sprintf("required parameter %s is missing", param.Name),
				})
			}
			continue
		}
		// ${name} expressions resolve against run-time globals; they are
		// validated when the run starts, not here.
		if s, ok := value.(string); ok && len(s) > 3 && s[0] == '$' && s[1] == '{' {
			continue
		}
		if err := param.Validate(value); err != nil {
			verr.Add(domain.ValidationIssue{
				Code:    domain.IssueBadParameter,
				NodeID:  node.ID,
				Message: err.Error(),
			})
		}
	}
}

func (p *Parser) collectConnections(def *domain.WorkflowDefinition, graph *domain.WorkflowGraph, verr *domain.ValidationError) {
	// input occupancy per (node, port) to reject duplicate wiring into
	// single-input ports
	occupied := make(map[string]int)

	for _, conn := range def.Connections {
		if !conn.IsEnabled() {
			continue
		}

		fromNode, fromOK := graph.Nodes[conn.FromNode]
		toNode, toOK := graph.Nodes[conn.ToNode]

		// Connections touching a disabled node are dropped with the node;
		// references to ids that never existed are errors.
		if !fromOK {
			if def.NodeByID(conn.FromNode) == nil {
				verr.Add(domain.ValidationIssue{
					Code:         domain.IssueUnknownNode,
					ConnectionID: conn.ID,
					Message:      fmt.Sprintf("source node %q does not exist", conn.FromNode),
				})
			}
			continue
		}
		if !toOK {
			if def.NodeByID(conn.ToNode) == nil {
				verr.Add(domain.ValidationIssue{
					Code:         domain.IssueUnknownNode,
					ConnectionID: conn.ID,
					Message:      fmt.Sprintf("target node %q does not exist", conn.ToNode),
				})
			}
			continue
		}

		fromInfo := graph.Infos[fromNode.ID]
		toInfo := graph.Infos[toNode.ID]

		outPort, ok := fromInfo.OutputPort(conn.FromPort)
		if !ok {
			verr.Add(domain.ValidationIssue{
				Code:         domain.IssueUnknownPort,
				ConnectionID: conn.ID,
				Message:      fmt.Sprintf("node %s has no output port %q", conn.FromNode, conn.FromPort),
			})
			continue
		}
		inPort, ok := toInfo.InputPort(conn.ToPort)
		if !ok {
			verr.Add(domain.ValidationIssue{
				Code:         domain.IssueUnknownPort,
				ConnectionID: conn.ID,
				Message:      fmt.Sprintf("node %s has no input port %q", conn.ToNode, conn.ToPort),
			})
			continue
		}

		if !outPort.DataType.Compatible(inPort.DataType) {
			verr.Add(domain.ValidationIssue{
				Code:         domain.IssueTypeMismatch,
				ConnectionID: conn.ID,
				Message: fmt.Sprintf("output %s.%s (%s) is not compatible with input %s.%s (%s)",
					conn.FromNode, conn.FromPort, outPort.DataType,
					conn.ToNode, conn.ToPort, inPort.DataType),
			})
			continue
		}

		slot := conn.ToNode + "\x00" + conn.ToPort
		occupied[slot]++
		if occupied[slot] > 1 && !inPort.AllowMultiple {
			verr.Add(domain.ValidationIssue{
				Code:         domain.IssueDuplicateInput,
				ConnectionID: conn.ID,
				Message:      fmt.Sprintf("input port %s.%s accepts a single connection", conn.ToNode, conn.ToPort),
			})
			continue
		}

		graph.Outgoing[conn.FromNode] = append(graph.Outgoing[conn.FromNode], conn)
		graph.Incoming[conn.ToNode] = append(graph.Incoming[conn.ToNode], conn)
	}
}

func (p *Parser) checkRequiredInputs(graph *domain.WorkflowGraph, verr *domain.ValidationError) {
	for _, nodeID := range graph.Order {
		info := graph.Infos[nodeID]
		for _, port := range info.Inputs {
			if !port.Required {
				continue
			}
			wired := false
			for _, conn := range graph.Incoming[nodeID] {
				if conn.ToPort == port.Name {
					wired = true
					break
				}
			}
			if !wired {
				verr.Add(domain.ValidationIssue{
					Code:    domain.IssueMissingInput,
					NodeID:  nodeID,
					Message: fmt.Sprintf("required input port %q has no connection", port.Name),
				})
			}
		}
	}
}

// checkCycles runs a DFS coloring pass over the adjacency. Any back-edge
// is reported together with the node sequence of the cycle it closes.
func (p *Parser) checkCycles(graph *domain.WorkflowGraph, verr *domain.ValidationError) {
	const (
		white = iota // unvisited
		grey         // on the current DFS path
		black        // fully explored
	)

	color := make(map[string]int, len(graph.Nodes))
	var path []string

	var visit func(nodeID string) []string
	visit = func(nodeID string) []string {
		color[nodeID] = grey
		path = append(path, nodeID)

		for _, next := range graph.Downstream(nodeID) {
			switch color[next] {
			case white:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			case grey:
				// back-edge: slice the current path from the first
				// occurrence of next to close the cycle
				for i, id := range path {
					if id == next {
						cycle := append([]string{}, path[i:]...)
						return append(cycle, next)
					}
				}
			}
		}

		color[nodeID] = black
		path = path[:len(path)-1]
		return nil
	}

	for _, nodeID := range graph.Order {
		if color[nodeID] != white {
			continue
		}
		path = path[:0]
		if cycle := visit(nodeID); cycle != nil {
			verr.Add(domain.ValidationIssue{
				Code:    domain.IssueCycle,
				Message: fmt.Sprintf("workflow contains a cycle: %s", joinArrow(cycle)),
			})
			return
		}
	}
}

func joinArrow(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += " -> "
		}
		out += id
	}
	return out
}
