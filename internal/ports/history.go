package ports

import (
	"time"

	"github.com/flowforge-io/flowforge/internal/domain"
)

// WorkflowTemplate is a stored, versioned definition managed by the
// workflow manager.
type WorkflowTemplate struct {
	TemplateID string                     `json:"template_id"`
	Version    int                        `json:"version"`
	SavedAt    time.Time                  `json:"saved_at"`
	Definition *domain.WorkflowDefinition `json:"definition"`
}

// ExecutionRecord is the summary appended to history once a run settles.
type ExecutionRecord struct {
	RunID       string            `json:"run_id"`
	WorkflowID  string            `json:"workflow_id"`
	State       domain.RunState   `json:"state"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	Metrics     domain.RunMetrics `json:"metrics"`
	LastError   *string           `json:"last_error,omitempty"`
}

// HistoryStore keeps execution records for the engine's lifetime. Durable
// persistence is an external collaborator behind this same interface.
type HistoryStore interface {
	Append(record ExecutionRecord)
	List(workflowID string) []ExecutionRecord
	All() []ExecutionRecord
}

// TemplateStore keeps versioned workflow templates.
type TemplateStore interface {
	Save(def *domain.WorkflowDefinition) (WorkflowTemplate, error)
	Get(templateID string) (WorkflowTemplate, error)
	GetVersion(templateID string, version int) (WorkflowTemplate, error)
	List() []WorkflowTemplate
}
