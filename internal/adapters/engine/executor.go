package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

// executor runs a single node attempt with panic recovery and the
// per-node timeout. A node that outlives the timeout is abandoned, its
// attempt counted as a resource failure; the engine never preempts.
type executor struct {
	logger  *slog.Logger
	metrics *domain.ExecutionMetrics
}

func newExecutor(logger *slog.Logger, metrics *domain.ExecutionMetrics) *executor {
	return &executor{
		logger:  logger.With("component", "executor"),
		metrics: metrics,
	}
}

type attemptOutcome struct {
	result *domain.ExecutionResult
	err    error
}

func (e *executor) run(
	ctx context.Context,
	plugin ports.NodePlugin,
	req ports.ExecuteRequest,
	nodeID string,
	attempt int,
) (*domain.ExecutionResult, time.Duration, error) {
	timeout := req.Context.Timeout
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCtx = domain.WithRunContext(execCtx, &domain.RunContext{
		RunID:      req.Context.RunID,
		WorkflowID: req.Context.WorkflowID,
		NodeID:     nodeID,
		Attempt:    attempt,
	})

	started := time.Now()
	outcome := make(chan attemptOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr := domain.NewNodePanicError(req.Context.RunID, nodeID, r)
				e.logger.Error("node execution panicked",
					"run_id", req.Context.RunID,
					"node_id", nodeID,
					"panic_value", r,
					"stack_trace", panicErr.StackTrace)
				outcome <- attemptOutcome{err: panicErr}
			}
		}()

		result, err := plugin.Execute(execCtx, req)
		outcome <- attemptOutcome{result: result, err: err}
	}()

	select {
	case <-execCtx.Done():
		duration := time.Since(started)
		if ctx.Err() != nil {
			// the run itself was torn down, not a per-node timeout
			return nil, duration, ctx.Err()
		}
		e.metrics.IncrementNodesTimedOut()
		e.logger.Warn("node execution timed out",
			"run_id", req.Context.RunID,
			"node_id", nodeID,
			"timeout", timeout)
		return nil, duration, fmt.Errorf("node %s exceeded %s: %w", nodeID, timeout, domain.ErrTimeout)

	case out := <-outcome:
		duration := time.Since(started)
		if out.err != nil {
			return nil, duration, out.err
		}
		if out.result == nil {
			return nil, duration, domain.NewNodeExecutionError(nodeID, "node returned no result", nil)
		}
		if !out.result.Success {
			return nil, duration, domain.NewNodeExecutionError(nodeID, out.result.ErrorMessage, nil)
		}
		out.result.NodeID = nodeID
		out.result.ExecutionTime = duration
		return out.result, duration, nil
	}
}
