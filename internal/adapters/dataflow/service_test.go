package dataflow

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge-io/flowforge/internal/adapters/parser"
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

// fanOutGraph: source feeds two steps, both feed a merge sink.
func fanOutGraph(t *testing.T) *domain.WorkflowGraph {
	t.Helper()

	reg := registry.New(testLogger())
	infos := []domain.NodeInfo{
		{
			Type:    "source",
			Outputs: []domain.PortInfo{{Name: "rows", Type: domain.PortTypeData, DataType: domain.DataTypeTable}},
		},
		{
			Type:    "step",
			Inputs:  []domain.PortInfo{{Name: "rows", Type: domain.PortTypeData, DataType: domain.DataTypeTable, Required: true}},
			Outputs: []domain.PortInfo{{Name: "rows", Type: domain.PortTypeData, DataType: domain.DataTypeTable}},
		},
		{
			Type: "merge",
			Inputs: []domain.PortInfo{
				{Name: "rows", Type: domain.PortTypeData, DataType: domain.DataTypeTable, Required: true, AllowMultiple: true},
			},
		},
	}
	for _, info := range infos {
		require.NoError(t, reg.Register(&stubPlugin{info: info}))
	}

	def := &domain.WorkflowDefinition{
		ID: "wf-fan",
		Nodes: []domain.WorkflowNode{
			{ID: "src", Type: "source"},
			{ID: "left", Type: "step"},
			{ID: "right", Type: "step"},
			{ID: "join", Type: "merge"},
		},
		Connections: []domain.WorkflowConnection{
			{ID: "c1", FromNode: "src", FromPort: "rows", ToNode: "left", ToPort: "rows"},
			{ID: "c2", FromNode: "src", FromPort: "rows", ToNode: "right", ToPort: "rows"},
			{ID: "c3", FromNode: "left", FromPort: "rows", ToNode: "join", ToPort: "rows"},
			{ID: "c4", FromNode: "right", FromPort: "rows", ToNode: "join", ToPort: "rows"},
		},
	}

	graph, err := parser.New(reg, testLogger()).Parse(def)
	require.NoError(t, err)
	return graph
}

func TestPublishAndFetch(t *testing.T) {
	svc := New(fanOutGraph(t), testLogger())

	rows := []interface{}{"r1", "r2"}
	require.NoError(t, svc.Publish("src", domain.NewSuccessResult("src", map[string]interface{}{"rows": rows})))
	assert.Equal(t, 1, svc.BufferedSlots())

	inputs, err := svc.FetchInputs("left")
	require.NoError(t, err)
	assert.Equal(t, rows, inputs["rows"])
}

func TestSlotEvictedAfterLastConsumer(t *testing.T) {
	svc := New(fanOutGraph(t), testLogger())

	require.NoError(t, svc.Publish("src", domain.NewSuccessResult("src", map[string]interface{}{"rows": "data"})))
	assert.Equal(t, 1, svc.BufferedSlots())

	_, err := svc.FetchInputs("left")
	require.NoError(t, err)
	// one of two consumers fetched; the slot survives
	assert.Equal(t, 1, svc.BufferedSlots())

	_, err = svc.FetchInputs("right")
	require.NoError(t, err)
	assert.Equal(t, 0, svc.BufferedSlots())

	// a second fetch finds nothing
	_, err = svc.FetchInputs("right")
	assert.ErrorIs(t, err, domain.ErrBufferedMissing)
}

func TestFetchMissingInput(t *testing.T) {
	svc := New(fanOutGraph(t), testLogger())

	_, err := svc.FetchInputs("left")
	assert.ErrorIs(t, err, domain.ErrBufferedMissing)
}

func TestMultiInputCollectsAllValues(t *testing.T) {
	svc := New(fanOutGraph(t), testLogger())

	require.NoError(t, svc.Publish("left", domain.NewSuccessResult("left", map[string]interface{}{"rows": "from-left"})))
	require.NoError(t, svc.Publish("right", domain.NewSuccessResult("right", map[string]interface{}{"rows": "from-right"})))

	inputs, err := svc.FetchInputs("join")
	require.NoError(t, err)

	values, ok := inputs["rows"].([]interface{})
	require.True(t, ok, "multi-connection input should collect a slice")
	assert.ElementsMatch(t, []interface{}{"from-left", "from-right"}, values)
	assert.Equal(t, 0, svc.BufferedSlots())
}

func TestFailedFetchClaimsNothing(t *testing.T) {
	svc := New(fanOutGraph(t), testLogger())

	// only left has published; join's fetch fails on the missing right slot
	require.NoError(t, svc.Publish("left", domain.NewSuccessResult("left", map[string]interface{}{"rows": "from-left"})))

	_, err := svc.FetchInputs("join")
	require.ErrorIs(t, err, domain.ErrBufferedMissing)

	// left's slot keeps its claim; once right publishes, the fetch succeeds
	assert.Equal(t, 1, svc.BufferedSlots())
	require.NoError(t, svc.Publish("right", domain.NewSuccessResult("right", map[string]interface{}{"rows": "from-right"})))

	inputs, fetchErr := svc.FetchInputs("join")
	require.NoError(t, fetchErr)
	values, ok := inputs["rows"].([]interface{})
	require.True(t, ok)
	assert.ElementsMatch(t, []interface{}{"from-left", "from-right"}, values)
}

func TestReleaseFreesClaims(t *testing.T) {
	svc := New(fanOutGraph(t), testLogger())

	require.NoError(t, svc.Publish("src", domain.NewSuccessResult("src", map[string]interface{}{"rows": "data"})))

	_, err := svc.FetchInputs("left")
	require.NoError(t, err)

	// right is skipped: releasing its claim evicts the slot without delivery
	svc.Release("right")
	assert.Equal(t, 0, svc.BufferedSlots())
}

func TestUnconsumedOutputDropped(t *testing.T) {
	svc := New(fanOutGraph(t), testLogger())

	// join has no consumers, so its outputs are never buffered
	require.NoError(t, svc.Publish("join", domain.NewSuccessResult("join", nil)))
	assert.Equal(t, 0, svc.BufferedSlots())
}

func TestLineageTrail(t *testing.T) {
	svc := New(fanOutGraph(t), testLogger())

	require.NoError(t, svc.Publish("src", domain.NewSuccessResult("src", map[string]interface{}{"rows": "data"})))
	_, err := svc.FetchInputs("left")
	require.NoError(t, err)
	_, err = svc.FetchInputs("right")
	require.NoError(t, err)

	var actions []domain.LineageAction
	for _, rec := range svc.Lineage() {
		actions = append(actions, rec.Action)
	}
	assert.Equal(t, []domain.LineageAction{
		domain.LineagePublish,
		domain.LineageFetch,
		domain.LineageFetch,
		domain.LineageEvict,
	}, actions)

	fetches := 0
	for _, rec := range svc.Lineage() {
		if rec.Action == domain.LineageFetch {
			fetches++
			assert.Equal(t, "src", rec.Producer)
			assert.NotEmpty(t, rec.Consumer)
		}
	}
	assert.Equal(t, 2, fetches)
}

func TestPublishUnknownNode(t *testing.T) {
	svc := New(fanOutGraph(t), testLogger())

	err := svc.Publish("ghost", domain.NewSuccessResult("ghost", nil))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
