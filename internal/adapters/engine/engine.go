package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flowforge-io/flowforge/internal/adapters/dataflow"
	"github.com/flowforge-io/flowforge/internal/adapters/parser"
	"github.com/flowforge-io/flowforge/internal/adapters/planner"
	"github.com/flowforge-io/flowforge/internal/adapters/recovery"
	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

// Engine composes the parser, planner, data flow service, error handler
// and scheduler behind the run lifecycle API. Run returns a handle
// immediately; the scheduler drives the plan on a background goroutine.
type Engine struct {
	config   domain.Config
	registry ports.NodeRegistryPort
	parser   ports.ParserPort
	planner  ports.PlannerPort
	handler  ports.ErrorHandlerPort
	sched    *Scheduler
	sink     ports.EventSink
	logger   *slog.Logger
	metrics  *domain.ExecutionMetrics

	mu       sync.RWMutex
	runs     map[string]*runEntry
	started  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	onFinish []func(domain.RunStatus)
}

type runEntry struct {
	handle *domain.RunHandle
	flow   ports.DataFlowPort
}

func New(config domain.Config, registry ports.NodeRegistryPort, sink ports.EventSink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = ports.NopSink()
	}

	metrics := &domain.ExecutionMetrics{}
	handler := recovery.New(recovery.Policy{MaxRetries: config.Engine.RetryAttempts}, logger)

	return &Engine{
		config:   config,
		registry: registry,
		parser:   parser.New(registry, logger),
		planner:  planner.New(config.Engine, logger),
		handler:  handler,
		sched:    NewScheduler(config.Engine, registry, handler, logger, metrics),
		sink:     sink,
		logger:   logger.With("component", "engine"),
		metrics:  metrics,
		runs:     make(map[string]*runEntry),
	}
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return domain.ErrAlreadyStarted
	}

	e.ctx, e.cancel = context.WithCancel(ctx)
	e.started = true
	e.logger.Info("engine started",
		"max_concurrent_tasks", e.config.Engine.MaxConcurrentTasks,
		"retry_attempts", e.config.Engine.RetryAttempts)
	return nil
}

// Stop cancels every in-flight run and waits for their schedulers to
// settle.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return domain.ErrNotStarted
	}
	e.started = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.logger.Info("engine stopped")
	return nil
}

// OnRunFinished registers a callback invoked with the final status of
// every run. Must be called before Start.
func (e *Engine) OnRunFinished(fn func(domain.RunStatus)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFinish = append(e.onFinish, fn)
}

// Validate parses the definition against the registry without running
// it, returning the validated graph or the accumulated issues.
func (e *Engine) Validate(def *domain.WorkflowDefinition) (*domain.WorkflowGraph, error) {
	return e.parser.Parse(def)
}

// Plan validates the definition and builds its execution plan without
// running it.
func (e *Engine) Plan(def *domain.WorkflowDefinition) (*domain.ExecutionPlan, error) {
	graph, err := e.parser.Parse(def)
	if err != nil {
		return nil, err
	}
	return e.planner.Build(graph)
}

func (e *Engine) Run(def *domain.WorkflowDefinition, globals map[string]interface{}) (*domain.RunHandle, error) {
	e.mu.RLock()
	started := e.started
	runCtx := e.ctx
	e.mu.RUnlock()

	if !started {
		return nil, domain.ErrNotStarted
	}

	graph, err := e.parser.Parse(def)
	if err != nil {
		return nil, err
	}

	plan, err := e.planner.Build(graph)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveGlobals(def, globals)
	if err != nil {
		return nil, err
	}

	execCtx := domain.NewExecutionContext(def.ID, e.config.Engine, resolved)
	flow := dataflow.New(graph, e.logger)
	handle := domain.NewRunHandle(execCtx, plan, e.sink.Publish, e.metrics)

	e.mu.Lock()
	e.runs[handle.RunID()] = &runEntry{handle: handle, flow: flow}
	e.mu.Unlock()

	e.logger.Info("run accepted",
		"run_id", handle.RunID(),
		"workflow_id", def.ID,
		"nodes", plan.TotalNodes(),
		"groups", len(plan.Groups))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sched.Run(runCtx, graph, plan, flow, execCtx, handle)
		e.notifyFinished(handle)
	}()

	return handle, nil
}

func (e *Engine) notifyFinished(handle *domain.RunHandle) {
	status := handle.Status()

	e.mu.RLock()
	callbacks := make([]func(domain.RunStatus), len(e.onFinish))
	copy(callbacks, e.onFinish)
	e.mu.RUnlock()

	for _, fn := range callbacks {
		fn(status)
	}
}

func (e *Engine) Pause(runID string) error {
	entry, err := e.lookup(runID)
	if err != nil {
		return err
	}
	return entry.handle.Pause()
}

func (e *Engine) Resume(runID string) error {
	entry, err := e.lookup(runID)
	if err != nil {
		return err
	}
	return entry.handle.Resume()
}

func (e *Engine) Cancel(runID string) error {
	entry, err := e.lookup(runID)
	if err != nil {
		return err
	}
	return entry.handle.Cancel()
}

func (e *Engine) Status(runID string) (domain.RunStatus, error) {
	entry, err := e.lookup(runID)
	if err != nil {
		return domain.RunStatus{}, err
	}
	return entry.handle.Status(), nil
}

// Lineage reports the buffer audit trail recorded for a run.
func (e *Engine) Lineage(runID string) ([]domain.LineageRecord, error) {
	entry, err := e.lookup(runID)
	if err != nil {
		return nil, err
	}
	return entry.flow.Lineage(), nil
}

func (e *Engine) Metrics() domain.ExecutionMetrics {
	return e.metrics.GetSnapshot()
}

func (e *Engine) lookup(runID string) (*runEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	return entry, nil
}

// resolveGlobals layers caller-supplied values over the definition's
// declared global parameters, filling defaults and rejecting missing
// required values or values that fail the declared rules.
func resolveGlobals(def *domain.WorkflowDefinition, globals map[string]interface{}) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(globals))
	for k, v := range globals {
		resolved[k] = v
	}

	for _, p := range def.GlobalParameters {
		value, present := resolved[p.Name]
		if !present {
			if p.Default != nil {
				resolved[p.Name] = p.Default
				continue
			}
			if p.Required {
				return nil, &domain.ParameterValidationError{
					Parameter: p.Name,
					Message:   "required global parameter missing",
				}
			}
			continue
		}
		if err := p.Validate(value); err != nil {
			return nil, &domain.ParameterValidationError{
				Parameter: p.Name,
				Message:   err.Error(),
			}
		}
	}

	return resolved, nil
}
