package domain

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExecutionContext is the read-only runtime environment shared by every
// node of one run. It is created once by the engine when the run starts.
type ExecutionContext struct {
	RunID            string                 `json:"run_id"`
	WorkflowID       string                 `json:"workflow_id"`
	StartedAt        time.Time              `json:"started_at"`
	GlobalParameters map[string]interface{} `json:"global_parameters,omitempty"`
	MaxMemoryMB      int                    `json:"max_memory_mb"`
	Timeout          time.Duration          `json:"timeout"`
	LogLevel         slog.Level             `json:"log_level"`
}

func NewExecutionContext(workflowID string, cfg EngineConfig, globals map[string]interface{}) *ExecutionContext {
	return &ExecutionContext{
		RunID:            GenerateRunID(),
		WorkflowID:       workflowID,
		StartedAt:        time.Now(),
		GlobalParameters: globals,
		MaxMemoryMB:      cfg.MaxMemoryMB,
		Timeout:          cfg.NodeExecutionTimeout,
		LogLevel:         slog.LevelInfo,
	}
}

// ResolveParameter expands a ${name} expression against the global
// parameters. Anything that is not an expression is returned verbatim, as
// is an expression naming an unknown parameter.
func (c *ExecutionContext) ResolveParameter(expression string) interface{} {
	if !strings.HasPrefix(expression, "${") || !strings.HasSuffix(expression, "}") {
		return expression
	}
	name := expression[2 : len(expression)-1]
	if value, ok := c.GlobalParameters[name]; ok {
		return value
	}
	return expression
}

// ResolveParameters returns a copy of params with every string-valued
// ${name} expression expanded.
func (c *ExecutionContext) ResolveParameters(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	resolved := make(map[string]interface{}, len(params))
	for key, value := range params {
		if s, ok := value.(string); ok {
			resolved[key] = c.ResolveParameter(s)
		} else {
			resolved[key] = value
		}
	}
	return resolved
}

func GenerateRunID() string {
	return "run_" + uuid.NewString()[:8]
}

func GenerateWorkflowID() string {
	return "workflow_" + uuid.NewString()[:8]
}

func GenerateNodeID() string {
	return "node_" + uuid.NewString()[:8]
}

// RunContext is the per-dispatch metadata made available to nodes through
// the context passed to Execute.
type RunContext struct {
	RunID      string
	WorkflowID string
	NodeID     string
	Attempt    int
}

type contextKey string

const runContextKey contextKey = "flowforge:run_context"

func WithRunContext(ctx context.Context, runCtx *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey, runCtx)
}

func GetRunContext(ctx context.Context) (*RunContext, bool) {
	runCtx, ok := ctx.Value(runContextKey).(*RunContext)
	return runCtx, ok
}
