package ports

import (
	"context"

	"github.com/flowforge-io/flowforge/internal/domain"
)

// NodePlugin is the capability contract every node type implements. The
// engine depends only on this interface; concrete node implementations
// live outside the core.
type NodePlugin interface {
	Info() domain.NodeInfo
	ValidateInputs(inputs map[string]interface{}) error
	Execute(ctx context.Context, req ExecuteRequest) (*domain.ExecutionResult, error)
}

// ExecuteRequest carries everything one node dispatch needs: the fetched
// upstream values keyed by input port, the resolved parameters, and the
// run-wide execution context (read-only to nodes).
type ExecuteRequest struct {
	Inputs     map[string]interface{}
	Parameters map[string]interface{}
	Context    *domain.ExecutionContext
}

// NodeRegistryPort is the explicit registry handed into the engine and
// parser; node types are registered at startup, not discovered through
// global mutable state.
type NodeRegistryPort interface {
	Register(plugin NodePlugin) error
	Get(nodeType string) (NodePlugin, error)
	List() []domain.NodeInfo
	Categories() []string
}
