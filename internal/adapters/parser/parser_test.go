package parser

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge-io/flowforge/internal/adapters/registry"
	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

type stubPlugin struct {
	info domain.NodeInfo
}

func (p *stubPlugin) Info() domain.NodeInfo                       { return p.info }
func (p *stubPlugin) ValidateInputs(map[string]interface{}) error { return nil }
func (p *stubPlugin) Execute(context.Context, ports.ExecuteRequest) (*domain.ExecutionResult, error) {
	return domain.NewSuccessResult("", nil), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) ports.NodeRegistryPort {
	t.Helper()
	reg := registry.New(testLogger())

	plugins := []domain.NodeInfo{
		{
			Type:     "source",
			Category: "sources",
			Outputs:  []domain.PortInfo{{Name: "rows", Type: domain.PortTypeData, DataType: domain.DataTypeTable}},
		},
		{
			Type:     "transform",
			Category: "transforms",
			Inputs:   []domain.PortInfo{{Name: "rows", Type: domain.PortTypeData, DataType: domain.DataTypeTable, Required: true}},
			Outputs:  []domain.PortInfo{{Name: "rows", Type: domain.PortTypeData, DataType: domain.DataTypeTable}},
		},
		{
			Type:     "sink",
			Category: "sinks",
			Inputs:   []domain.PortInfo{{Name: "rows", Type: domain.PortTypeData, DataType: domain.DataTypeTable, Required: true}},
		},
		{
			Type:     "merge",
			Category: "transforms",
			Inputs:   []domain.PortInfo{{Name: "rows", Type: domain.PortTypeData, DataType: domain.DataTypeTable, Required: true, AllowMultiple: true}},
			Outputs:  []domain.PortInfo{{Name: "rows", Type: domain.PortTypeData, DataType: domain.DataTypeTable}},
		},
		{
			Type:    "gauge",
			Inputs:  []domain.PortInfo{{Name: "value", Type: domain.PortTypeData, DataType: domain.DataTypeNumber, Required: true}},
		},
		{
			Type: "filter",
			Inputs: []domain.PortInfo{
				{Name: "rows", Type: domain.PortTypeData, DataType: domain.DataTypeTable, Required: true},
			},
			Outputs: []domain.PortInfo{{Name: "rows", Type: domain.PortTypeData, DataType: domain.DataTypeTable}},
			Parameters: []domain.ParameterInfo{
				{Name: "column", Type: domain.ParameterTypeText, Required: true},
				{Name: "limit", Type: domain.ParameterTypeNumber},
			},
		},
	}

	for _, info := range plugins {
		require.NoError(t, reg.Register(&stubPlugin{info: info}))
	}
	return reg
}

func node(id, nodeType string) domain.WorkflowNode {
	return domain.WorkflowNode{ID: id, Type: nodeType}
}

func conn(id, from, fromPort, to, toPort string) domain.WorkflowConnection {
	return domain.WorkflowConnection{ID: id, FromNode: from, FromPort: fromPort, ToNode: to, ToPort: toPort}
}

func issueCodes(t *testing.T, err error) []string {
	t.Helper()
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	codes := make([]string, 0, len(verr.Issues))
	for _, issue := range verr.Issues {
		codes = append(codes, issue.Code)
	}
	return codes
}

func TestParseLinearWorkflow(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	def := &domain.WorkflowDefinition{
		ID: "wf-linear",
		Nodes: []domain.WorkflowNode{
			node("load", "source"),
			node("clean", "transform"),
			node("save", "sink"),
		},
		Connections: []domain.WorkflowConnection{
			conn("c1", "load", "rows", "clean", "rows"),
			conn("c2", "clean", "rows", "save", "rows"),
		},
	}

	graph, err := p.Parse(def)
	require.NoError(t, err)

	assert.Equal(t, []string{"load", "clean", "save"}, graph.Order)
	assert.Equal(t, []string{"clean"}, graph.Downstream("load"))
	assert.Equal(t, []string{"clean"}, graph.Upstream("save"))
	assert.Equal(t, 1, graph.ConsumerCount("load", "rows"))
}

func TestParseEmptyWorkflow(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	_, err := p.Parse(&domain.WorkflowDefinition{ID: "wf-empty"})
	assert.Contains(t, issueCodes(t, err), domain.IssueEmptyWorkflow)
}

func TestParseUnknownNodeType(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	def := &domain.WorkflowDefinition{
		ID:    "wf-unknown-type",
		Nodes: []domain.WorkflowNode{node("x", "does-not-exist")},
	}

	_, err := p.Parse(def)
	codes := issueCodes(t, err)
	assert.Contains(t, codes, domain.IssueUnknownNodeType)
}

func TestParseUnknownConnectionEndpoint(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	def := &domain.WorkflowDefinition{
		ID:    "wf-bad-conn",
		Nodes: []domain.WorkflowNode{node("load", "source")},
		Connections: []domain.WorkflowConnection{
			conn("c1", "load", "rows", "ghost", "rows"),
		},
	}

	_, err := p.Parse(def)
	assert.Contains(t, issueCodes(t, err), domain.IssueUnknownNode)
}

func TestParseUnknownPort(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	def := &domain.WorkflowDefinition{
		ID: "wf-bad-port",
		Nodes: []domain.WorkflowNode{
			node("load", "source"),
			node("save", "sink"),
		},
		Connections: []domain.WorkflowConnection{
			conn("c1", "load", "nope", "save", "rows"),
		},
	}

	_, err := p.Parse(def)
	codes := issueCodes(t, err)
	assert.Contains(t, codes, domain.IssueUnknownPort)
	// the dropped connection also leaves the sink's required input unwired
	assert.Contains(t, codes, domain.IssueMissingInput)
}

func TestParseTypeMismatch(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	def := &domain.WorkflowDefinition{
		ID: "wf-mismatch",
		Nodes: []domain.WorkflowNode{
			node("load", "source"),
			node("meter", "gauge"),
		},
		Connections: []domain.WorkflowConnection{
			conn("c1", "load", "rows", "meter", "value"),
		},
	}

	_, err := p.Parse(def)
	assert.Contains(t, issueCodes(t, err), domain.IssueTypeMismatch)
}

func TestParseDuplicateSingleInput(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	def := &domain.WorkflowDefinition{
		ID: "wf-dup-input",
		Nodes: []domain.WorkflowNode{
			node("a", "source"),
			node("b", "source"),
			node("save", "sink"),
		},
		Connections: []domain.WorkflowConnection{
			conn("c1", "a", "rows", "save", "rows"),
			conn("c2", "b", "rows", "save", "rows"),
		},
	}

	_, err := p.Parse(def)
	assert.Contains(t, issueCodes(t, err), domain.IssueDuplicateInput)
}

func TestParseMultiInputPortAllowsFanIn(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	def := &domain.WorkflowDefinition{
		ID: "wf-fan-in",
		Nodes: []domain.WorkflowNode{
			node("a", "source"),
			node("b", "source"),
			node("join", "merge"),
		},
		Connections: []domain.WorkflowConnection{
			conn("c1", "a", "rows", "join", "rows"),
			conn("c2", "b", "rows", "join", "rows"),
		},
	}

	graph, err := p.Parse(def)
	require.NoError(t, err)
	assert.Len(t, graph.Incoming["join"], 2)
}

func TestParseDuplicateNodeID(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	def := &domain.WorkflowDefinition{
		ID: "wf-dup-id",
		Nodes: []domain.WorkflowNode{
			node("load", "source"),
			node("load", "source"),
		},
	}

	_, err := p.Parse(def)
	assert.Contains(t, issueCodes(t, err), domain.IssueDuplicateID)
}

func TestParseCycleReportsSequence(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	def := &domain.WorkflowDefinition{
		ID: "wf-cycle",
		Nodes: []domain.WorkflowNode{
			node("a", "transform"),
			node("b", "transform"),
			node("c", "transform"),
		},
		Connections: []domain.WorkflowConnection{
			conn("c1", "a", "rows", "b", "rows"),
			conn("c2", "b", "rows", "c", "rows"),
			conn("c3", "c", "rows", "a", "rows"),
		},
	}

	_, err := p.Parse(def)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	var cycle *domain.ValidationIssue
	for i := range verr.Issues {
		if verr.Issues[i].Code == domain.IssueCycle {
			cycle = &verr.Issues[i]
		}
	}
	require.NotNil(t, cycle, "expected a cycle issue")
	assert.Contains(t, cycle.Message, "a -> b -> c -> a")
}

func TestParseDisabledNodeDropsConnections(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	disabled := false
	def := &domain.WorkflowDefinition{
		ID: "wf-disabled",
		Nodes: []domain.WorkflowNode{
			node("load", "source"),
			{ID: "clean", Type: "transform", Enabled: &disabled},
			node("load2", "source"),
			node("save", "sink"),
		},
		Connections: []domain.WorkflowConnection{
			conn("c1", "load", "rows", "clean", "rows"),
			conn("c2", "load2", "rows", "save", "rows"),
		},
	}

	graph, err := p.Parse(def)
	require.NoError(t, err)

	_, present := graph.Nodes["clean"]
	assert.False(t, present)
	assert.Empty(t, graph.Outgoing["load"])
	assert.Equal(t, []string{"save"}, graph.Downstream("load2"))
}

func TestParseMissingRequiredParameter(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	def := &domain.WorkflowDefinition{
		ID: "wf-params",
		Nodes: []domain.WorkflowNode{
			node("load", "source"),
			{ID: "keep", Type: "filter", Parameters: map[string]interface{}{"limit": "not-a-number"}},
		},
		Connections: []domain.WorkflowConnection{
			conn("c1", "load", "rows", "keep", "rows"),
		},
	}

	_, err := p.Parse(def)
	codes := issueCodes(t, err)
	// missing required "column" and ill-typed "limit" both surface
	assert.GreaterOrEqual(t, len(codes), 2)
	for _, code := range codes {
		assert.Equal(t, domain.IssueBadParameter, code)
	}
}

func TestParseParameterExpressionsDeferred(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	def := &domain.WorkflowDefinition{
		ID: "wf-expr",
		Nodes: []domain.WorkflowNode{
			node("load", "source"),
			{ID: "keep", Type: "filter", Parameters: map[string]interface{}{
				"column": "${target_column}",
				"limit":  "${max_rows}",
			}},
		},
		Connections: []domain.WorkflowConnection{
			conn("c1", "load", "rows", "keep", "rows"),
		},
	}

	_, err := p.Parse(def)
	require.NoError(t, err)
}

func TestParseAccumulatesIssues(t *testing.T) {
	p := New(testRegistry(t), testLogger())

	def := &domain.WorkflowDefinition{
		ID: "wf-many",
		Nodes: []domain.WorkflowNode{
			node("load", "source"),
			node("x", "does-not-exist"),
			node("meter", "gauge"),
		},
		Connections: []domain.WorkflowConnection{
			conn("c1", "load", "rows", "meter", "value"),
			conn("c2", "load", "rows", "ghost", "rows"),
		},
	}

	_, err := p.Parse(def)
	codes := issueCodes(t, err)
	assert.Contains(t, codes, domain.IssueUnknownNodeType)
	assert.Contains(t, codes, domain.IssueTypeMismatch)
	assert.Contains(t, codes, domain.IssueUnknownNode)
}
