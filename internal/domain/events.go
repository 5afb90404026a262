package domain

import (
	"time"
)

// Event is implemented by every lifecycle event the engine emits. Delivery
// to a UI or external bus is a subscriber concern; the engine only writes
// events to the configured sink.
type Event interface {
	EventName() string
}

type RunStartedEvent struct {
	RunID      string    `json:"run_id"`
	WorkflowID string    `json:"workflow_id"`
	StartedAt  time.Time `json:"started_at"`
	TotalNodes int       `json:"total_nodes"`
	Groups     int       `json:"groups"`
}

func (RunStartedEvent) EventName() string { return "run.started" }

type RunCompletedEvent struct {
	RunID       string        `json:"run_id"`
	WorkflowID  string        `json:"workflow_id"`
	State       RunState      `json:"state"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

func (RunCompletedEvent) EventName() string { return "run.completed" }

type RunPausedEvent struct {
	RunID    string    `json:"run_id"`
	PausedAt time.Time `json:"paused_at"`
}

func (RunPausedEvent) EventName() string { return "run.paused" }

type RunResumedEvent struct {
	RunID     string    `json:"run_id"`
	ResumedAt time.Time `json:"resumed_at"`
}

func (RunResumedEvent) EventName() string { return "run.resumed" }

type RunCancelledEvent struct {
	RunID       string    `json:"run_id"`
	RequestedAt time.Time `json:"requested_at"`
}

func (RunCancelledEvent) EventName() string { return "run.cancelled" }

type NodeStartedEvent struct {
	RunID     string    `json:"run_id"`
	NodeID    string    `json:"node_id"`
	Attempt   int       `json:"attempt"`
	StartedAt time.Time `json:"started_at"`
}

func (NodeStartedEvent) EventName() string { return "node.started" }

type NodeCompletedEvent struct {
	RunID       string        `json:"run_id"`
	NodeID      string        `json:"node_id"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	Warnings    []string      `json:"warnings,omitempty"`
}

func (NodeCompletedEvent) EventName() string { return "node.completed" }

type NodeFailedEvent struct {
	RunID    string           `json:"run_id"`
	NodeID   string           `json:"node_id"`
	FailedAt time.Time        `json:"failed_at"`
	Category ErrorCategory    `json:"category"`
	Level    ErrorLevel       `json:"level"`
	Strategy RecoveryStrategy `json:"strategy"`
	Error    string           `json:"error"`
}

func (NodeFailedEvent) EventName() string { return "node.failed" }

type NodeSkippedEvent struct {
	RunID  string `json:"run_id"`
	NodeID string `json:"node_id"`
	Reason string `json:"reason"`
}

func (NodeSkippedEvent) EventName() string { return "node.skipped" }

type GroupAdvancedEvent struct {
	RunID      string `json:"run_id"`
	GroupIndex int    `json:"group_index"`
	NodeCount  int    `json:"node_count"`
}

func (GroupAdvancedEvent) EventName() string { return "group.advanced" }
