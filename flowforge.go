// Package flowforge provides an embeddable workflow execution engine for
// Go applications.
//
// FlowForge runs directed acyclic workflows of typed nodes: definitions
// are validated against a node registry, layered into execution groups,
// and executed with bounded concurrency, per-node timeouts, retry with
// backoff, and skip propagation across dependent branches. It provides:
//   - Multi-issue workflow validation with cycle detection
//   - Deterministic topological planning with serial, parallel and
//     priority-ordered group strategies
//   - Reference-counted data buffers with a lineage audit trail
//   - Classified error recovery (retry, skip, abort)
//   - Pause, resume and cooperative cancellation per run
//   - Event-driven lifecycle monitoring with pub/sub subscriptions
//   - Versioned workflow templates and bounded execution history
//
// Basic usage:
//
//	manager, err := flowforge.New(flowforge.DefaultConfig())
//	manager.RegisterNode(&MyNode{})
//	manager.Start(context.Background())
//
//	handle, err := manager.StartWorkflow(def, map[string]interface{}{
//	    "input_path": "./data.csv",
//	})
//	state, err := handle.Wait(context.Background())
package flowforge

import (
	"context"

	"github.com/flowforge-io/flowforge/internal/core"
	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

// Manager is the main entry point: it owns the node registry, engine,
// event bus, templates and execution history.
type Manager = core.Manager

// Config is the top-level configuration for a Manager.
type Config = domain.Config

// EngineConfig tunes scheduling, retries and resource limits.
type EngineConfig = domain.EngineConfig

// HistoryConfig bounds the in-memory execution history.
type HistoryConfig = domain.HistoryConfig

// WorkflowDefinition is the serializable description of a workflow:
// nodes, connections and global parameters.
type WorkflowDefinition = domain.WorkflowDefinition

// WorkflowNode is a single configured node inside a definition.
type WorkflowNode = domain.WorkflowNode

// WorkflowConnection wires an output port of one node to an input port
// of another.
type WorkflowConnection = domain.WorkflowConnection

// NodeInfo is the static contract a node plugin publishes: its type,
// ports and parameter schema.
type NodeInfo = domain.NodeInfo

// PortInfo describes a single input or output port.
type PortInfo = domain.PortInfo

// ParameterInfo describes one configurable parameter and its rules.
type ParameterInfo = domain.ParameterInfo

// PortType distinguishes data, control and event ports.
type PortType = domain.PortType

// DataType is the payload type a port carries.
type DataType = domain.DataType

// ParameterType is the declared kind of a parameter value.
type ParameterType = domain.ParameterType

// Port types.
const (
	PortTypeData    = domain.PortTypeData
	PortTypeControl = domain.PortTypeControl
	PortTypeEvent   = domain.PortTypeEvent
)

// Data types.
const (
	DataTypeTable   = domain.DataTypeTable
	DataTypeText    = domain.DataTypeText
	DataTypeNumber  = domain.DataTypeNumber
	DataTypeBoolean = domain.DataTypeBoolean
	DataTypeDate    = domain.DataTypeDate
	DataTypeFile    = domain.DataTypeFile
	DataTypeJSON    = domain.DataTypeJSON
	DataTypeList    = domain.DataTypeList
	DataTypeMap     = domain.DataTypeMap
	DataTypeAny     = domain.DataTypeAny
)

// Parameter types.
const (
	ParameterTypeText    = domain.ParameterTypeText
	ParameterTypeNumber  = domain.ParameterTypeNumber
	ParameterTypeBoolean = domain.ParameterTypeBoolean
	ParameterTypeChoice  = domain.ParameterTypeChoice
	ParameterTypeFile    = domain.ParameterTypeFile
	ParameterTypeDate    = domain.ParameterTypeDate
	ParameterTypeJSON    = domain.ParameterTypeJSON
)

// ValidationRules constrains a parameter's value.
type ValidationRules = domain.ValidationRules

// NodePlugin is the interface node implementations provide.
type NodePlugin = ports.NodePlugin

// ExecuteRequest carries a node's inputs, resolved parameters and run
// context into Execute.
type ExecuteRequest = ports.ExecuteRequest

// ExecutionResult is what a node returns: outputs per port plus timing,
// memory and warning metadata.
type ExecutionResult = domain.ExecutionResult

// ExecutionContext carries run-scoped settings and global parameters.
type ExecutionContext = domain.ExecutionContext

// RunHandle is the live state machine of one workflow run.
type RunHandle = domain.RunHandle

// RunStatus is a point-in-time snapshot of a run.
type RunStatus = domain.RunStatus

// RunState enumerates the lifecycle states of a run.
type RunState = domain.RunState

// Run lifecycle states.
const (
	RunStatePending   = domain.RunStatePending
	RunStateRunning   = domain.RunStateRunning
	RunStatePaused    = domain.RunStatePaused
	RunStateCompleted = domain.RunStateCompleted
	RunStateFailed    = domain.RunStateFailed
	RunStateCancelled = domain.RunStateCancelled
)

// NodeExecutionInfo is the per-node view inside a RunStatus.
type NodeExecutionInfo = domain.NodeExecutionInfo

// WorkflowGraph is a validated definition with adjacency indexes and a
// deterministic node order.
type WorkflowGraph = domain.WorkflowGraph

// ExecutionPlan is the layered schedule built from a validated graph.
type ExecutionPlan = domain.ExecutionPlan

// ExecutionGroup is one layer of the plan.
type ExecutionGroup = domain.ExecutionGroup

// ValidationError aggregates every issue found while parsing a
// definition.
type ValidationError = domain.ValidationError

// ValidationIssue is a single problem found in a definition.
type ValidationIssue = domain.ValidationIssue

// RecoveryDecision records how a node failure was classified and what
// the engine chose to do about it.
type RecoveryDecision = domain.RecoveryDecision

// LineageRecord is one entry in a run's buffer audit trail.
type LineageRecord = domain.LineageRecord

// WorkflowTemplate is a stored, versioned definition.
type WorkflowTemplate = ports.WorkflowTemplate

// ExecutionRecord summarizes a settled run in the history.
type ExecutionRecord = ports.ExecutionRecord

// Event is the common interface of run and node lifecycle events.
type Event = domain.Event

// Run lifecycle events.
type (
	RunStartedEvent   = domain.RunStartedEvent
	RunCompletedEvent = domain.RunCompletedEvent
	RunPausedEvent    = domain.RunPausedEvent
	RunResumedEvent   = domain.RunResumedEvent
	RunCancelledEvent = domain.RunCancelledEvent
)

// Node lifecycle events.
type (
	NodeStartedEvent   = domain.NodeStartedEvent
	NodeCompletedEvent = domain.NodeCompletedEvent
	NodeFailedEvent    = domain.NodeFailedEvent
	NodeSkippedEvent   = domain.NodeSkippedEvent
	GroupAdvancedEvent = domain.GroupAdvancedEvent
)

// New creates a Manager from the given configuration. Call Start before
// launching workflows.
func New(config Config) (*Manager, error) {
	return core.NewManager(config)
}

// DefaultConfig returns a configuration with sensible defaults for an
// embedded engine.
func DefaultConfig() Config {
	return *domain.DefaultConfig()
}

// LoadConfig reads a YAML configuration file and merges it over the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg, err := domain.LoadConfig(path)
	if err != nil {
		return Config{}, err
	}
	return *cfg, nil
}

// NewSuccessResult builds a successful ExecutionResult with the given
// port outputs.
func NewSuccessResult(nodeID string, outputs map[string]interface{}) *ExecutionResult {
	return domain.NewSuccessResult(nodeID, outputs)
}

// NewErrorResult builds a failed ExecutionResult carrying an error
// message.
func NewErrorResult(nodeID, message string) *ExecutionResult {
	return domain.NewErrorResult(nodeID, message)
}

// GetRunContext extracts run metadata from the context passed to a
// node's Execute.
func GetRunContext(ctx context.Context) (*domain.RunContext, bool) {
	return domain.GetRunContext(ctx)
}
