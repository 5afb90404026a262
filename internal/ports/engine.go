package ports

import (
	"context"

	"github.com/flowforge-io/flowforge/internal/domain"
)

// ParserPort turns a raw definition into a validated graph model. Pure:
// a second parse of the same definition yields an equivalent graph.
type ParserPort interface {
	Parse(def *domain.WorkflowDefinition) (*domain.WorkflowGraph, error)
}

// PlannerPort layers a validated graph into concurrency-safe execution
// groups. Re-planning the same graph yields an identical plan.
type PlannerPort interface {
	Build(graph *domain.WorkflowGraph) (*domain.ExecutionPlan, error)
}

// EnginePort is the facade composing parser, planner, scheduler, data
// flow and error handling into run lifecycle operations.
type EnginePort interface {
	Start(ctx context.Context) error
	Stop() error

	// Run validates, plans and starts the workflow, returning the handle
	// immediately; execution proceeds asynchronously.
	Run(def *domain.WorkflowDefinition, globals map[string]interface{}) (*domain.RunHandle, error)

	Pause(runID string) error
	Resume(runID string) error
	Cancel(runID string) error
	Status(runID string) (domain.RunStatus, error)

	Metrics() domain.ExecutionMetrics
}
