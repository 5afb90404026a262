package core

import (
	"context"
	"log/slog"

	"github.com/flowforge-io/flowforge/internal/adapters/engine"
	"github.com/flowforge-io/flowforge/internal/adapters/events"
	"github.com/flowforge-io/flowforge/internal/adapters/history"
	"github.com/flowforge-io/flowforge/internal/adapters/registry"
	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

// Manager is the top-level entry point: it owns the node registry, the
// engine, the event fan-out and the template and history stores, and
// wires run completion into the history.
type Manager struct {
	config    domain.Config
	logger    *slog.Logger
	registry  ports.NodeRegistryPort
	engine    *engine.Engine
	events    *events.Manager
	historyDB ports.HistoryStore
	templates ports.TemplateStore
}

func NewManager(config domain.Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg := registry.New(logger)
	eventBus := events.NewManager(logger)
	historyDB := history.NewStore(config.History, logger)
	templates := history.NewTemplates(logger)

	eng := engine.New(config, reg, eventBus, logger)
	eng.OnRunFinished(func(status domain.RunStatus) {
		completedAt := status.StartedAt
		if status.CompletedAt != nil {
			completedAt = *status.CompletedAt
		}
		historyDB.Append(ports.ExecutionRecord{
			RunID:       status.RunID,
			WorkflowID:  status.WorkflowID,
			State:       status.State,
			StartedAt:   status.StartedAt,
			CompletedAt: completedAt,
			Metrics:     status.Metrics,
			LastError:   status.LastError,
		})
	})

	return &Manager{
		config:    config,
		logger:    logger.With("component", "manager"),
		registry:  reg,
		engine:    eng,
		events:    eventBus,
		historyDB: historyDB,
		templates: templates,
	}, nil
}

func (m *Manager) Start(ctx context.Context) error {
	return m.engine.Start(ctx)
}

func (m *Manager) Stop() error {
	err := m.engine.Stop()
	m.events.Close()
	return err
}

// RegisterNode makes a node plugin available to workflows by its type.
func (m *Manager) RegisterNode(plugin ports.NodePlugin) error {
	return m.registry.Register(plugin)
}

func (m *Manager) Registry() ports.NodeRegistryPort { return m.registry }

// ValidateWorkflow checks a definition against the registered node
// types without running it.
func (m *Manager) ValidateWorkflow(def *domain.WorkflowDefinition) (*domain.WorkflowGraph, error) {
	return m.engine.Validate(def)
}

// PlanWorkflow validates a definition and returns its execution plan.
func (m *Manager) PlanWorkflow(def *domain.WorkflowDefinition) (*domain.ExecutionPlan, error) {
	return m.engine.Plan(def)
}

// StartWorkflow validates, plans and launches a run, returning its
// handle immediately.
func (m *Manager) StartWorkflow(def *domain.WorkflowDefinition, globals map[string]interface{}) (*domain.RunHandle, error) {
	return m.engine.Run(def, globals)
}

// StartTemplate launches the latest saved version of a template.
func (m *Manager) StartTemplate(templateID string, globals map[string]interface{}) (*domain.RunHandle, error) {
	tpl, err := m.templates.Get(templateID)
	if err != nil {
		return nil, err
	}
	return m.engine.Run(tpl.Definition, globals)
}

func (m *Manager) Pause(runID string) error  { return m.engine.Pause(runID) }
func (m *Manager) Resume(runID string) error { return m.engine.Resume(runID) }
func (m *Manager) Cancel(runID string) error { return m.engine.Cancel(runID) }

func (m *Manager) Status(runID string) (domain.RunStatus, error) {
	return m.engine.Status(runID)
}

func (m *Manager) Lineage(runID string) ([]domain.LineageRecord, error) {
	return m.engine.Lineage(runID)
}

func (m *Manager) Metrics() domain.ExecutionMetrics {
	return m.engine.Metrics()
}

// Subscribe returns a channel of run and node lifecycle events plus a
// cancel func releasing the subscription.
func (m *Manager) Subscribe() (<-chan domain.Event, func()) {
	return m.events.Subscribe()
}

func (m *Manager) SaveTemplate(def *domain.WorkflowDefinition) (ports.WorkflowTemplate, error) {
	return m.templates.Save(def)
}

func (m *Manager) GetTemplate(templateID string) (ports.WorkflowTemplate, error) {
	return m.templates.Get(templateID)
}

func (m *Manager) GetTemplateVersion(templateID string, version int) (ports.WorkflowTemplate, error) {
	return m.templates.GetVersion(templateID, version)
}

func (m *Manager) ListTemplates() []ports.WorkflowTemplate {
	return m.templates.List()
}

func (m *Manager) History(workflowID string) []ports.ExecutionRecord {
	return m.historyDB.List(workflowID)
}

func (m *Manager) AllHistory() []ports.ExecutionRecord {
	return m.historyDB.All()
}
