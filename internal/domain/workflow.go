package domain

import (
	"time"
)

// WorkflowDefinition is the declarative graph handed to the engine by the
// authoring layer. It is referenced, never mutated, once parsing begins.
type WorkflowDefinition struct {
	ID               string               `json:"workflow_id" yaml:"workflow_id"`
	Name             string               `json:"name" yaml:"name"`
	Description      string               `json:"description,omitempty" yaml:"description,omitempty"`
	Version          string               `json:"version" yaml:"version"`
	CreatedAt        time.Time            `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Nodes            []WorkflowNode       `json:"nodes" yaml:"nodes"`
	Connections      []WorkflowConnection `json:"connections" yaml:"connections"`
	GlobalParameters []ParameterInfo      `json:"global_parameters,omitempty" yaml:"global_parameters,omitempty"`
}

func (d *WorkflowDefinition) NodeByID(id string) *WorkflowNode {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

func (d *WorkflowDefinition) ConnectionsFrom(nodeID string) []WorkflowConnection {
	var out []WorkflowConnection
	for _, conn := range d.Connections {
		if conn.FromNode == nodeID {
			out = append(out, conn)
		}
	}
	return out
}

func (d *WorkflowDefinition) ConnectionsTo(nodeID string) []WorkflowConnection {
	var out []WorkflowConnection
	for _, conn := range d.Connections {
		if conn.ToNode == nodeID {
			out = append(out, conn)
		}
	}
	return out
}

// WorkflowNode places one typed node on the canvas. Position is UI metadata
// and is carried through untouched by the engine.
type WorkflowNode struct {
	ID          string                 `json:"node_id" yaml:"node_id"`
	Type        string                 `json:"node_type" yaml:"node_type"`
	DisplayName string                 `json:"display_name" yaml:"display_name"`
	Position    Position               `json:"position" yaml:"position"`
	Parameters  map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Enabled     *bool                  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Required    bool                   `json:"required,omitempty" yaml:"required,omitempty"`
}

// IsEnabled treats a missing flag as enabled, matching the authoring
// layer's serialization which omits the default.
func (n *WorkflowNode) IsEnabled() bool {
	return n.Enabled == nil || *n.Enabled
}

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// WorkflowConnection wires one output port to one input port.
type WorkflowConnection struct {
	ID       string `json:"connection_id" yaml:"connection_id"`
	FromNode string `json:"from_node_id" yaml:"from_node_id"`
	FromPort string `json:"from_port" yaml:"from_port"`
	ToNode   string `json:"to_node_id" yaml:"to_node_id"`
	ToPort   string `json:"to_port" yaml:"to_port"`
	Enabled  *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

func (c *WorkflowConnection) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
