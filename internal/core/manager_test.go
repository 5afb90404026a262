package core

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

type passNode struct {
	nodeType string
}

func (n *passNode) Info() domain.NodeInfo {
	return domain.NodeInfo{
		Type:    n.nodeType,
		Inputs:  []domain.PortInfo{{Name: "in", Type: domain.PortTypeData, DataType: domain.DataTypeAny}},
		Outputs: []domain.PortInfo{{Name: "out", Type: domain.PortTypeData, DataType: domain.DataTypeAny}},
	}
}

func (n *passNode) ValidateInputs(map[string]interface{}) error { return nil }

func (n *passNode) Execute(_ context.Context, req ports.ExecuteRequest) (*domain.ExecutionResult, error) {
	return domain.NewSuccessResult("", map[string]interface{}{"out": req.Inputs["in"]}), nil
}

func testManager(t *testing.T) *Manager {
	t.Helper()

	cfg := domain.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.Engine.RetryBackoff = time.Millisecond

	m, err := NewManager(*cfg)
	require.NoError(t, err)
	require.NoError(t, m.RegisterNode(&passNode{nodeType: "pass"}))
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop() })
	return m
}

func twoNodeDefinition(id string) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID: id,
		Nodes: []domain.WorkflowNode{
			{ID: "a", Type: "pass"},
			{ID: "b", Type: "pass"},
		},
		Connections: []domain.WorkflowConnection{
			{ID: "c1", FromNode: "a", FromPort: "out", ToNode: "b", ToPort: "in"},
		},
	}
}

func TestManagerRejectsInvalidConfig(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Engine.MaxConcurrentTasks = 0

	_, err := NewManager(*cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestManagerRunAndHistory(t *testing.T) {
	m := testManager(t)

	handle, err := m.StartWorkflow(twoNodeDefinition("wf-history"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateCompleted, state)

	// the history record is appended right after the run settles
	require.Eventually(t, func() bool {
		return len(m.History("wf-history")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	record := m.History("wf-history")[0]
	assert.Equal(t, handle.RunID(), record.RunID)
	assert.Equal(t, domain.RunStateCompleted, record.State)
	assert.Equal(t, 2, record.Metrics.NodesSucceeded)
	assert.Len(t, m.AllHistory(), 1)
}

func TestManagerTemplates(t *testing.T) {
	m := testManager(t)

	def := twoNodeDefinition("wf-template")
	saved, err := m.SaveTemplate(def)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)

	def2 := twoNodeDefinition("wf-template")
	def2.Name = "revised"
	saved2, err := m.SaveTemplate(def2)
	require.NoError(t, err)
	assert.Equal(t, 2, saved2.Version)

	latest, err := m.GetTemplate("wf-template")
	require.NoError(t, err)
	assert.Equal(t, "revised", latest.Definition.Name)

	original, err := m.GetTemplateVersion("wf-template", 1)
	require.NoError(t, err)
	assert.Empty(t, original.Definition.Name)

	assert.Len(t, m.ListTemplates(), 1)
}

func TestManagerStartTemplate(t *testing.T) {
	m := testManager(t)

	_, err := m.SaveTemplate(twoNodeDefinition("wf-start-template"))
	require.NoError(t, err)

	handle, err := m.StartTemplate("wf-start-template", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateCompleted, state)

	_, err = m.StartTemplate("nope", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManagerEventsSubscription(t *testing.T) {
	m := testManager(t)

	events, cancelSub := m.Subscribe()
	defer cancelSub()

	handle, err := m.StartWorkflow(twoNodeDefinition("wf-events"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = handle.Wait(ctx)
	require.NoError(t, err)

	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for !seen["run.started"] || !seen["run.completed"] || !seen["node.completed"] {
		select {
		case event := <-events:
			seen[event.EventName()] = true
		case <-deadline:
			t.Fatalf("missing lifecycle events, saw %v", seen)
		}
	}
}

func TestManagerRunControls(t *testing.T) {
	m := testManager(t)

	handle, err := m.StartWorkflow(twoNodeDefinition("wf-controls"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = handle.Wait(ctx)
	require.NoError(t, err)

	status, err := m.Status(handle.RunID())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateCompleted, status.State)

	records, err := m.Lineage(handle.RunID())
	require.NoError(t, err)
	assert.NotEmpty(t, records)

	metrics := m.Metrics()
	assert.GreaterOrEqual(t, metrics.RunsCompleted, int64(1))

	_, err = m.Status("run_unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
