package domain

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveParameter(t *testing.T) {
	execCtx := NewExecutionContext("wf-1", DefaultEngineConfig(), map[string]interface{}{
		"input_path": "/tmp/data.csv",
		"threshold":  0.75,
	})

	assert.Equal(t, "/tmp/data.csv", execCtx.ResolveParameter("${input_path}"))
	assert.Equal(t, 0.75, execCtx.ResolveParameter("${threshold}"))

	// unknown names and non-expressions pass through verbatim
	assert.Equal(t, "${missing}", execCtx.ResolveParameter("${missing}"))
	assert.Equal(t, "plain value", execCtx.ResolveParameter("plain value"))
}

func TestResolveParameters(t *testing.T) {
	execCtx := NewExecutionContext("wf-1", DefaultEngineConfig(), map[string]interface{}{
		"sep": ";",
	})

	resolved := execCtx.ResolveParameters(map[string]interface{}{
		"separator": "${sep}",
		"columns":   3,
		"header":    "id;name",
	})

	assert.Equal(t, ";", resolved["separator"])
	assert.Equal(t, 3, resolved["columns"])
	assert.Equal(t, "id;name", resolved["header"])
}

func TestGenerateRunID(t *testing.T) {
	id := GenerateRunID()
	assert.True(t, strings.HasPrefix(id, "run_"))
	assert.Len(t, id, len("run_")+8)
	assert.NotEqual(t, id, GenerateRunID())
}

func TestRunContextRoundTrip(t *testing.T) {
	ctx := WithRunContext(context.Background(), &RunContext{
		RunID:   "run_abc12345",
		NodeID:  "load",
		Attempt: 2,
	})

	runCtx, ok := GetRunContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "load", runCtx.NodeID)
	assert.Equal(t, 2, runCtx.Attempt)

	_, ok = GetRunContext(context.Background())
	assert.False(t, ok)
}
