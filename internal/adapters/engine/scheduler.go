package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dario.cat/mergo"
	"golang.org/x/sync/errgroup"

	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

const (
	skipReasonUpstreamFailed  = "upstream node failed"
	skipReasonUpstreamSkipped = "upstream node skipped"
)

// Scheduler walks an execution plan group by group. Groups run in plan
// order; nodes inside a group run under the group's strategy with a
// bounded worker pool. Pause takes effect only at group boundaries,
// cancellation before every node dispatch.
type Scheduler struct {
	config   domain.EngineConfig
	registry ports.NodeRegistryPort
	handler  ports.ErrorHandlerPort
	exec     *executor
	logger   *slog.Logger
	metrics  *domain.ExecutionMetrics
}

func NewScheduler(
	config domain.EngineConfig,
	registry ports.NodeRegistryPort,
	handler ports.ErrorHandlerPort,
	logger *slog.Logger,
	metrics *domain.ExecutionMetrics,
) *Scheduler {
	return &Scheduler{
		config:   config,
		registry: registry,
		handler:  handler,
		exec:     newExecutor(logger, metrics),
		logger:   logger.With("component", "scheduler"),
		metrics:  metrics,
	}
}

// runState tracks cross-node outcomes for a single run.
type runState struct {
	mu             sync.Mutex
	skipped        map[string]string // node id -> reason
	aborted        bool
	abortErr       error
	requiredFailed error
}

func newRunState() *runState {
	return &runState{skipped: make(map[string]string)}
}

func (st *runState) skipReason(nodeID string) (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	reason, ok := st.skipped[nodeID]
	return reason, ok
}

// markDownstreamSkipped flags every transitive consumer of nodeID so
// later groups skip them without executing.
func (st *runState) markDownstreamSkipped(graph *domain.WorkflowGraph, nodeID, reason string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	queue := append([]string(nil), graph.Downstream(nodeID)...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, seen := st.skipped[next]; seen {
			continue
		}
		st.skipped[next] = reason
		queue = append(queue, graph.Downstream(next)...)
	}
}

func (st *runState) abort(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.aborted {
		st.aborted = true
		st.abortErr = err
	}
}

func (st *runState) isAborted() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.aborted
}

func (st *runState) noteRequiredFailure(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.requiredFailed == nil {
		st.requiredFailed = err
	}
}

// Run executes the plan to completion and settles the handle into a
// terminal state. It blocks; the engine invokes it on its own goroutine.
func (s *Scheduler) Run(
	ctx context.Context,
	graph *domain.WorkflowGraph,
	plan *domain.ExecutionPlan,
	flow ports.DataFlowPort,
	execCtx *domain.ExecutionContext,
	handle *domain.RunHandle,
) {
	handle.Begin(len(plan.Groups))
	s.logger.Info("run started",
		"run_id", execCtx.RunID,
		"workflow_id", execCtx.WorkflowID,
		"groups", len(plan.Groups),
		"nodes", plan.TotalNodes())

	st := newRunState()
	interrupted := false

	for _, group := range plan.Groups {
		if err := handle.WaitIfPaused(ctx); err != nil {
			interrupted = true
			break
		}
		if handle.Cancelled() {
			break
		}
		if ctx.Err() != nil {
			// engine shutdown tears the run down like a cancellation
			interrupted = true
			break
		}

		s.runGroup(ctx, st, graph, plan, group, flow, execCtx, handle)
		handle.GroupAdvanced(group.Index, len(group.NodeIDs))

		if st.isAborted() {
			break
		}
	}

	if ctx.Err() != nil && hasUnfinishedNodes(handle) {
		interrupted = true
	}

	s.settle(st, interrupted, execCtx, handle)
}

// hasUnfinishedNodes reports whether any node never reached a settled
// status, which distinguishes a torn-down run from one that finished
// right as the engine shut down.
func hasUnfinishedNodes(handle *domain.RunHandle) bool {
	for _, info := range handle.Status().Nodes {
		if info.Status == domain.NodeStatusPending || info.Status == domain.NodeStatusRunning {
			return true
		}
	}
	return false
}

func (s *Scheduler) settle(st *runState, interrupted bool, execCtx *domain.ExecutionContext, handle *domain.RunHandle) {
	st.mu.Lock()
	aborted, abortErr, requiredFailed := st.aborted, st.abortErr, st.requiredFailed
	st.mu.Unlock()

	switch {
	case handle.Cancelled() || interrupted:
		handle.Finish(domain.RunStateCancelled, domain.ErrRunCancelled)
	case aborted:
		handle.Finish(domain.RunStateFailed, abortErr)
	case requiredFailed != nil:
		handle.Finish(domain.RunStateFailed, requiredFailed)
	default:
		handle.Finish(domain.RunStateCompleted, nil)
	}

	status := handle.Status()
	s.logger.Info("run settled",
		"run_id", execCtx.RunID,
		"workflow_id", execCtx.WorkflowID,
		"state", status.State,
		"nodes_succeeded", status.Metrics.NodesSucceeded,
		"nodes_failed", status.Metrics.NodesFailed,
		"nodes_skipped", status.Metrics.NodesSkipped)
}

func (s *Scheduler) runGroup(
	ctx context.Context,
	st *runState,
	graph *domain.WorkflowGraph,
	plan *domain.ExecutionPlan,
	group domain.ExecutionGroup,
	flow ports.DataFlowPort,
	execCtx *domain.ExecutionContext,
	handle *domain.RunHandle,
) {
	bound := s.groupConcurrency(plan, group)

	s.logger.Debug("dispatching group",
		"run_id", execCtx.RunID,
		"group", group.Index,
		"strategy", group.Strategy,
		"nodes", len(group.NodeIDs),
		"concurrency", bound)

	var eg errgroup.Group
	eg.SetLimit(bound)

	for _, nodeID := range group.NodeIDs {
		if handle.Cancelled() || st.isAborted() || ctx.Err() != nil {
			break
		}

		if reason, skip := st.skipReason(nodeID); skip {
			handle.NodeSkipped(nodeID, reason)
			flow.Release(nodeID)
			st.markDownstreamSkipped(graph, nodeID, skipReasonUpstreamSkipped)
			continue
		}

		nodeID := nodeID
		eg.Go(func() error {
			s.runNode(ctx, st, graph, flow, execCtx, handle, nodeID)
			return nil
		})
	}

	_ = eg.Wait()
}

func (s *Scheduler) groupConcurrency(plan *domain.ExecutionPlan, group domain.ExecutionGroup) int {
	if group.Strategy == domain.StrategySerial {
		return 1
	}
	bound := plan.MaxConcurrent
	if bound < 1 {
		bound = 1
	}
	if len(group.NodeIDs) < bound {
		bound = len(group.NodeIDs)
	}
	if bound < 1 {
		bound = 1
	}
	return bound
}

func (s *Scheduler) runNode(
	ctx context.Context,
	st *runState,
	graph *domain.WorkflowGraph,
	flow ports.DataFlowPort,
	execCtx *domain.ExecutionContext,
	handle *domain.RunHandle,
	nodeID string,
) {
	if handle.Cancelled() || st.isAborted() || ctx.Err() != nil {
		return
	}

	node := graph.Nodes[nodeID]

	plugin, err := s.registry.Get(node.Type)
	if err != nil {
		s.failNode(st, graph, flow, execCtx, handle, node, err, 1, 0, false)
		return
	}

	// Inputs come out of the buffer pool exactly once per node; retries
	// reuse the same fetched values, refcounts are already settled.
	inputs, err := flow.FetchInputs(nodeID)
	if err != nil {
		s.failNode(st, graph, flow, execCtx, handle, node, err, 1, 0, false)
		return
	}

	if err := plugin.ValidateInputs(inputs); err != nil {
		wrapped := fmt.Errorf("node %s rejected inputs: %w: %w", nodeID, domain.ErrInvalidInput, err)
		s.failNode(st, graph, flow, execCtx, handle, node, wrapped, 1, 0, true)
		return
	}

	params, err := s.resolveParameters(node, plugin.Info(), execCtx)
	if err != nil {
		s.failNode(st, graph, flow, execCtx, handle, node, err, 1, 0, true)
		return
	}

	req := ports.ExecuteRequest{
		Inputs:     inputs,
		Parameters: params,
		Context:    execCtx,
	}

	attempt := 0
	for {
		attempt++
		handle.NodeStarted(nodeID, attempt)

		result, duration, execErr := s.exec.run(ctx, plugin, req, nodeID, attempt)
		if execErr == nil {
			if pubErr := flow.Publish(nodeID, result); pubErr != nil {
				s.failNode(st, graph, flow, execCtx, handle, node, pubErr, attempt, duration, true)
				return
			}
			handle.NodeCompleted(nodeID, result, duration)
			return
		}

		if errors.Is(execErr, context.Canceled) && ctx.Err() != nil {
			// run torn down mid-attempt; the settle pass decides the state
			return
		}

		category, level := s.handler.Classify(execErr)
		strategy := s.handler.Decide(category, level, attempt)
		decision := domain.RecoveryDecision{
			NodeID:   nodeID,
			Category: category,
			Level:    level,
			Strategy: strategy,
			Attempt:  attempt,
			Message:  execErr.Error(),
		}

		s.logger.Warn("node failure classified",
			"run_id", execCtx.RunID,
			"node_id", nodeID,
			"attempt", attempt,
			"category", category,
			"level", level,
			"strategy", strategy,
			"error", execErr)

		switch strategy {
		case domain.RecoveryRetry:
			handle.NodeRetried(nodeID, decision)
			if !s.backoff(ctx, handle, attempt) {
				return
			}
			continue

		case domain.RecoveryAbort:
			handle.NodeFailed(nodeID, execErr, decision, duration)
			st.abort(execErr)
			return

		default: // RecoverySkip
			handle.NodeFailed(nodeID, execErr, decision, duration)
			st.markDownstreamSkipped(graph, nodeID, skipReasonUpstreamFailed)
			if node.Required {
				st.noteRequiredFailure(execErr)
			}
			return
		}
	}
}

// failNode records a pre-execution failure (registry miss, input fetch,
// input or parameter validation) through the same classify/decide path
// a runtime failure takes, minus the retry loop: these faults will not
// heal on a re-attempt. fetched says whether FetchInputs already claimed
// the node's input slots; releasing again would evict shared producer
// buffers out from under sibling consumers.
func (s *Scheduler) failNode(
	st *runState,
	graph *domain.WorkflowGraph,
	flow ports.DataFlowPort,
	execCtx *domain.ExecutionContext,
	handle *domain.RunHandle,
	node *domain.WorkflowNode,
	err error,
	attempt int,
	duration time.Duration,
	fetched bool,
) {
	category, level := s.handler.Classify(err)
	strategy := s.handler.Decide(category, level, attempt)
	if strategy == domain.RecoveryRetry {
		strategy = domain.RecoverySkip
	}
	decision := domain.RecoveryDecision{
		NodeID:   node.ID,
		Category: category,
		Level:    level,
		Strategy: strategy,
		Attempt:  attempt,
		Message:  err.Error(),
	}

	s.logger.Warn("node failed before execution",
		"run_id", execCtx.RunID,
		"node_id", node.ID,
		"category", category,
		"level", level,
		"strategy", strategy,
		"error", err)

	handle.NodeFailed(node.ID, err, decision, duration)
	if !fetched {
		flow.Release(node.ID)
	}

	if strategy == domain.RecoveryAbort {
		st.abort(err)
		return
	}

	st.markDownstreamSkipped(graph, node.ID, skipReasonUpstreamFailed)
	if node.Required {
		st.noteRequiredFailure(err)
	}
}

// backoff sleeps attempt*RetryBackoff, returning false when the run was
// cancelled while waiting.
func (s *Scheduler) backoff(ctx context.Context, handle *domain.RunHandle, attempt int) bool {
	delay := time.Duration(attempt) * s.config.RetryBackoff
	if delay <= 0 {
		return !handle.Cancelled() && ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-handle.CancelRequested():
		return false
	case <-timer.C:
		return !handle.Cancelled()
	}
}

// resolveParameters merges declared defaults under the node's explicit
// parameters, substitutes ${name} expressions from the run's global
// parameters, then validates everything against the plugin's schema.
func (s *Scheduler) resolveParameters(
	node *domain.WorkflowNode,
	info domain.NodeInfo,
	execCtx *domain.ExecutionContext,
) (map[string]interface{}, error) {
	params := make(map[string]interface{}, len(node.Parameters))
	for k, v := range node.Parameters {
		params[k] = v
	}

	defaults := make(map[string]interface{})
	for _, p := range info.Parameters {
		if p.Default != nil {
			defaults[p.Name] = p.Default
		}
	}
	if len(defaults) > 0 {
		if err := mergo.Map(&params, defaults); err != nil {
			return nil, fmt.Errorf("merging parameter defaults for node %s: %w", node.ID, err)
		}
	}

	params = execCtx.ResolveParameters(params)

	for _, p := range info.Parameters {
		value, present := params[p.Name]
		if !present {
			if p.Required {
				return nil, &domain.ParameterValidationError{
					NodeID:    node.ID,
					Parameter: p.Name,
					Message:   "required parameter missing",
				}
			}
			continue
		}
		if err := p.Validate(value); err != nil {
			return nil, &domain.ParameterValidationError{
				NodeID:    node.ID,
				Parameter: p.Name,
				Message:   err.Error(),
			}
		}
	}

	return params, nil
}
