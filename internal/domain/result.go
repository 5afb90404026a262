package domain

import (
	"time"
)

type NodeExecutionStatus string

const (
	NodeStatusPending   NodeExecutionStatus = "pending"
	NodeStatusRunning   NodeExecutionStatus = "running"
	NodeStatusCompleted NodeExecutionStatus = "completed"
	NodeStatusFailed    NodeExecutionStatus = "failed"
	NodeStatusSkipped   NodeExecutionStatus = "skipped"
	NodeStatusCancelled NodeExecutionStatus = "cancelled"
)

// ExecutionResult is what a node's Execute call hands back. Outputs are
// keyed by declared output port name; the data flow service buffers them
// until every declared consumer has fetched its copy.
type ExecutionResult struct {
	Success       bool                   `json:"success"`
	NodeID        string                 `json:"node_id"`
	Outputs       map[string]interface{} `json:"outputs,omitempty"`
	ExecutionTime time.Duration          `json:"execution_time"`
	MemoryUsageMB float64                `json:"memory_usage_mb,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	Warnings      []string               `json:"warnings,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

func NewSuccessResult(nodeID string, outputs map[string]interface{}) *ExecutionResult {
	return &ExecutionResult{
		Success: true,
		NodeID:  nodeID,
		Outputs: outputs,
	}
}

func NewErrorResult(nodeID, message string) *ExecutionResult {
	return &ExecutionResult{
		Success:      false,
		NodeID:       nodeID,
		ErrorMessage: message,
	}
}

func (r *ExecutionResult) Output(name string) (interface{}, bool) {
	value, ok := r.Outputs[name]
	return value, ok
}

func (r *ExecutionResult) AddWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

// NodeExecutionInfo is the externally observable record of one node's
// progress within a run.
type NodeExecutionInfo struct {
	NodeID      string              `json:"node_id"`
	Status      NodeExecutionStatus `json:"status"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Duration    time.Duration       `json:"duration,omitempty"`
	MemoryMB    float64             `json:"memory_mb,omitempty"`
	Attempts    int                 `json:"attempts"`
	Error       *string             `json:"error,omitempty"`
}
