package domain

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type RunState string

const (
	RunStatePending   RunState = "pending"
	RunStateRunning   RunState = "running"
	RunStatePaused    RunState = "paused"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
	RunStateCancelled RunState = "cancelled"
)

// Terminal states have no outgoing transition.
func (s RunState) Terminal() bool {
	return s == RunStateCompleted || s == RunStateFailed || s == RunStateCancelled
}

var ErrInvalidTransition = errors.New("invalid run state transition")

// RunStatus is a point-in-time snapshot of a run, safe to hand to
// observers while the scheduler keeps mutating the handle.
type RunStatus struct {
	RunID       string                       `json:"run_id"`
	WorkflowID  string                       `json:"workflow_id"`
	State       RunState                     `json:"state"`
	StartedAt   time.Time                    `json:"started_at"`
	CompletedAt *time.Time                   `json:"completed_at,omitempty"`
	LastError   *string                      `json:"last_error,omitempty"`
	Nodes       map[string]NodeExecutionInfo `json:"nodes"`
	Metrics     RunMetrics                   `json:"metrics"`
}

// RunHandle is the externally observable state machine of one workflow
// run. The scheduler is the only writer of node state and metrics;
// observers read snapshot copies. Cancel is cooperative: the flag is
// consulted by the scheduler before each dispatch, in-flight nodes run to
// completion.
type RunHandle struct {
	runID      string
	workflowID string
	startedAt  time.Time

	mu          sync.RWMutex
	state       RunState
	completedAt *time.Time
	lastError   *string
	nodes       map[string]*NodeExecutionInfo
	metrics     RunMetrics
	resumeCh    chan struct{}

	cancelled atomic.Bool
	cancelCh  chan struct{}
	done      chan struct{}

	emit          func(Event)
	engineMetrics *ExecutionMetrics
}

func NewRunHandle(execCtx *ExecutionContext, plan *ExecutionPlan, emit func(Event), engineMetrics *ExecutionMetrics) *RunHandle {
	nodes := make(map[string]*NodeExecutionInfo, plan.TotalNodes())
	for _, group := range plan.Groups {
		for _, nodeID := range group.NodeIDs {
			nodes[nodeID] = &NodeExecutionInfo{NodeID: nodeID, Status: NodeStatusPending}
		}
	}
	if emit == nil {
		emit = func(Event) {}
	}

	return &RunHandle{
		runID:      execCtx.RunID,
		workflowID: execCtx.WorkflowID,
		startedAt:  execCtx.StartedAt,
		state:      RunStatePending,
		nodes:      nodes,
		metrics: RunMetrics{
			TotalNodes:    plan.TotalNodes(),
			NodeDurations: make(map[string]time.Duration),
		},
		cancelCh:      make(chan struct{}),
		done:          make(chan struct{}),
		emit:          emit,
		engineMetrics: engineMetrics,
	}
}

func (h *RunHandle) RunID() string      { return h.runID }
func (h *RunHandle) WorkflowID() string { return h.workflowID }

func (h *RunHandle) State() RunState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Done is closed once the run reaches a terminal state.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// CancelRequested is closed when cancellation is requested, before the
// run settles. The scheduler selects on it to cut retry backoff short.
func (h *RunHandle) CancelRequested() <-chan struct{} { return h.cancelCh }

// Wait blocks until the run reaches a terminal state or ctx expires.
func (h *RunHandle) Wait(ctx context.Context) (RunState, error) {
	select {
	case <-ctx.Done():
		return h.State(), ctx.Err()
	case <-h.done:
		return h.State(), nil
	}
}

func (h *RunHandle) Cancelled() bool { return h.cancelled.Load() }

// Begin moves the run from pending to running when the scheduler picks
// it up.
func (h *RunHandle) Begin(totalGroups int) {
	h.mu.Lock()
	if h.state != RunStatePending {
		h.mu.Unlock()
		return
	}
	h.state = RunStateRunning
	h.mu.Unlock()

	h.engineMetrics.IncrementRunsStarted()
	h.emit(RunStartedEvent{
		RunID:      h.runID,
		WorkflowID: h.workflowID,
		StartedAt:  h.startedAt,
		TotalNodes: h.metrics.TotalNodes,
		Groups:     totalGroups,
	})
}

// Pause requests suspension of dispatch. It takes effect at the next
// group boundary, never mid-group.
func (h *RunHandle) Pause() error {
	h.mu.Lock()
	if h.state != RunStateRunning {
		h.mu.Unlock()
		return ErrInvalidTransition
	}
	h.state = RunStatePaused
	h.resumeCh = make(chan struct{})
	h.mu.Unlock()

	h.engineMetrics.IncrementRunsPaused()
	h.emit(RunPausedEvent{RunID: h.runID, PausedAt: time.Now()})
	return nil
}

func (h *RunHandle) Resume() error {
	h.mu.Lock()
	if h.state != RunStatePaused {
		h.mu.Unlock()
		return ErrInvalidTransition
	}
	h.state = RunStateRunning
	if h.resumeCh != nil {
		close(h.resumeCh)
		h.resumeCh = nil
	}
	h.mu.Unlock()

	h.engineMetrics.IncrementRunsResumed()
	h.emit(RunResumedEvent{RunID: h.runID, ResumedAt: time.Now()})
	return nil
}

// Cancel flips the cooperative cancellation flag. Idempotent; returns
// ErrRunFinished once the run has completed or failed.
func (h *RunHandle) Cancel() error {
	h.mu.Lock()
	if h.state.Terminal() {
		defer h.mu.Unlock()
		if h.state == RunStateCancelled {
			return nil
		}
		return ErrRunFinished
	}
	already := h.cancelled.Swap(true)
	if !already {
		close(h.cancelCh)
	}
	// Unblock a scheduler parked at a pause gate so it can observe the
	// cancellation.
	if h.resumeCh != nil {
		close(h.resumeCh)
		h.resumeCh = nil
	}
	h.mu.Unlock()

	if !already {
		h.emit(RunCancelledEvent{RunID: h.runID, RequestedAt: time.Now()})
	}
	return nil
}

// WaitIfPaused parks the caller while the run is paused. Returns ctx's
// error if the context expires first.
func (h *RunHandle) WaitIfPaused(ctx context.Context) error {
	for {
		h.mu.RLock()
		if h.state != RunStatePaused || h.cancelled.Load() {
			h.mu.RUnlock()
			return nil
		}
		ch := h.resumeCh
		h.mu.RUnlock()

		if ch == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (h *RunHandle) NodeStarted(nodeID string, attempt int) {
	now := time.Now()
	h.mu.Lock()
	if info, ok := h.nodes[nodeID]; ok {
		info.Status = NodeStatusRunning
		info.StartedAt = &now
		info.Attempts = attempt
	}
	h.mu.Unlock()

	h.engineMetrics.IncrementNodesExecuted()
	h.emit(NodeStartedEvent{RunID: h.runID, NodeID: nodeID, Attempt: attempt, StartedAt: now})
}

func (h *RunHandle) NodeCompleted(nodeID string, result *ExecutionResult, duration time.Duration) {
	now := time.Now()
	h.mu.Lock()
	if info, ok := h.nodes[nodeID]; ok {
		info.Status = NodeStatusCompleted
		info.CompletedAt = &now
		info.Duration = duration
		info.MemoryMB = result.MemoryUsageMB
	}
	h.metrics.NodesSucceeded++
	h.metrics.NodeDurations[nodeID] = duration
	if result.MemoryUsageMB > h.metrics.PeakMemoryMB {
		h.metrics.PeakMemoryMB = result.MemoryUsageMB
	}
	h.mu.Unlock()

	h.engineMetrics.IncrementNodesSucceeded()
	h.engineMetrics.AddExecutionTime(duration)
	h.emit(NodeCompletedEvent{
		RunID:       h.runID,
		NodeID:      nodeID,
		CompletedAt: now,
		Duration:    duration,
		Warnings:    result.Warnings,
	})
}

// NodeRetried records a retry decision without settling the node.
func (h *RunHandle) NodeRetried(nodeID string, decision RecoveryDecision) {
	h.mu.Lock()
	h.metrics.NodesRetried++
	h.metrics.Decisions = append(h.metrics.Decisions, decision)
	h.mu.Unlock()

	h.engineMetrics.IncrementNodesRetried()
}

func (h *RunHandle) NodeFailed(nodeID string, execErr error, decision RecoveryDecision, duration time.Duration) {
	now := time.Now()
	errStr := execErr.Error()
	h.mu.Lock()
	if info, ok := h.nodes[nodeID]; ok {
		info.Status = NodeStatusFailed
		info.CompletedAt = &now
		info.Duration = duration
		info.Error = &errStr
	}
	h.metrics.NodesFailed++
	h.metrics.Decisions = append(h.metrics.Decisions, decision)
	h.metrics.NodeDurations[nodeID] = duration
	h.mu.Unlock()

	h.engineMetrics.IncrementNodesFailed()
	h.emit(NodeFailedEvent{
		RunID:    h.runID,
		NodeID:   nodeID,
		FailedAt: now,
		Category: decision.Category,
		Level:    decision.Level,
		Strategy: decision.Strategy,
		Error:    errStr,
	})
}

func (h *RunHandle) NodeSkipped(nodeID, reason string) {
	h.mu.Lock()
	if info, ok := h.nodes[nodeID]; ok {
		info.Status = NodeStatusSkipped
	}
	h.metrics.NodesSkipped++
	h.mu.Unlock()

	h.engineMetrics.IncrementNodesSkipped()
	h.emit(NodeSkippedEvent{RunID: h.runID, NodeID: nodeID, Reason: reason})
}

func (h *RunHandle) GroupAdvanced(index, nodeCount int) {
	h.emit(GroupAdvancedEvent{RunID: h.runID, GroupIndex: index, NodeCount: nodeCount})
}

// Finish settles the run into a terminal state. When the run was
// cancelled, nodes never dispatched and attempts abandoned mid-flight
// are both marked cancelled so the terminal snapshot holds no live
// statuses.
func (h *RunHandle) Finish(state RunState, runErr error) {
	if !state.Terminal() {
		return
	}

	h.mu.Lock()
	if h.state.Terminal() {
		h.mu.Unlock()
		return
	}
	h.state = state
	now := time.Now()
	h.completedAt = &now
	if runErr != nil {
		errStr := runErr.Error()
		h.lastError = &errStr
	}
	if state == RunStateCancelled {
		for _, info := range h.nodes {
			if info.Status == NodeStatusPending || info.Status == NodeStatusRunning {
				info.Status = NodeStatusCancelled
			}
		}
	}
	h.mu.Unlock()

	switch state {
	case RunStateCompleted:
		h.engineMetrics.IncrementRunsCompleted()
	case RunStateFailed:
		h.engineMetrics.IncrementRunsFailed()
	case RunStateCancelled:
		h.engineMetrics.IncrementRunsCancelled()
	}

	errStr := ""
	if runErr != nil {
		errStr = runErr.Error()
	}
	h.emit(RunCompletedEvent{
		RunID:       h.runID,
		WorkflowID:  h.workflowID,
		State:       state,
		CompletedAt: now,
		Duration:    now.Sub(h.startedAt),
		Error:       errStr,
	})
	close(h.done)
}

func (h *RunHandle) NodeInfo(nodeID string) (NodeExecutionInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	info, ok := h.nodes[nodeID]
	if !ok {
		return NodeExecutionInfo{}, false
	}
	return *info, true
}

func (h *RunHandle) Status() RunStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	nodes := make(map[string]NodeExecutionInfo, len(h.nodes))
	for id, info := range h.nodes {
		nodes[id] = *info
	}

	return RunStatus{
		RunID:       h.runID,
		WorkflowID:  h.workflowID,
		State:       h.state,
		StartedAt:   h.startedAt,
		CompletedAt: h.completedAt,
		LastError:   h.lastError,
		Nodes:       nodes,
		Metrics:     h.metrics.Clone(),
	}
}
