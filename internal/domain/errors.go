package domain

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

var (
	ErrAlreadyStarted  = errors.New("engine already started")
	ErrNotStarted      = errors.New("engine not started")
	ErrNotFound        = errors.New("resource not found")
	ErrRunFinished     = errors.New("run already finished")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrTimeout         = errors.New("operation timeout")
	ErrRunCancelled    = errors.New("run cancelled")
	ErrDuplicateNode   = errors.New("node type already registered")
	ErrBufferedMissing = errors.New("no buffered result for slot")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// ValidationIssue is one problem found while parsing a definition. The
// parser reports every issue it finds, not only the first.
type ValidationIssue struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	NodeID       string `json:"node_id,omitempty"`
	ConnectionID string `json:"connection_id,omitempty"`
}

func (i ValidationIssue) String() string {
	switch {
	case i.ConnectionID != "":
		return fmt.Sprintf("[%s] connection %s: %s", i.Code, i.ConnectionID, i.Message)
	case i.NodeID != "":
		return fmt.Sprintf("[%s] node %s: %s", i.Code, i.NodeID, i.Message)
	default:
		return fmt.Sprintf("[%s] %s", i.Code, i.Message)
	}
}

// Issue codes reported by the parser.
const (
	IssueUnknownNode     = "unknown_node"
	IssueUnknownNodeType = "unknown_node_type"
	IssueUnknownPort     = "unknown_port"
	IssueTypeMismatch    = "type_mismatch"
	IssueDuplicateInput  = "duplicate_input"
	IssueDuplicateID     = "duplicate_id"
	IssueMissingInput    = "missing_required_input"
	IssueBadParameter    = "bad_parameter"
	IssueCycle           = "cycle"
	IssueEmptyWorkflow   = "empty_workflow"
)

type ValidationError struct {
	WorkflowID string
	Issues     []ValidationIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("workflow %s failed validation", e.WorkflowID)
	}
	lines := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		lines[i] = issue.String()
	}
	return fmt.Sprintf("workflow %s failed validation: %s", e.WorkflowID, strings.Join(lines, "; "))
}

func (e *ValidationError) Add(issue ValidationIssue) {
	e.Issues = append(e.Issues, issue)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NodeExecutionError wraps a failure raised inside a node's Execute call.
type NodeExecutionError struct {
	NodeID  string
	Message string
	Err     error
}

func (e *NodeExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("node %s execution failed: %s: %v", e.NodeID, e.Message, e.Err)
	}
	return fmt.Sprintf("node %s execution failed: %s", e.NodeID, e.Message)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

func NewNodeExecutionError(nodeID, message string, err error) *NodeExecutionError {
	return &NodeExecutionError{NodeID: nodeID, Message: message, Err: err}
}

// ParameterValidationError is raised before a node's Execute is invoked.
type ParameterValidationError struct {
	NodeID    string
	Parameter string
	Message   string
}

func (e *ParameterValidationError) Error() string {
	return fmt.Sprintf("node %s parameter %s failed validation: %s", e.NodeID, e.Parameter, e.Message)
}

// DataValidationError is raised when a produced value is wired to a port
// whose declared type is incompatible.
type DataValidationError struct {
	NodeID   string
	Port     string
	Expected DataType
	Actual   DataType
}

func (e *DataValidationError) Error() string {
	return fmt.Sprintf("node %s port %s: cannot accept %s where %s is declared", e.NodeID, e.Port, e.Actual, e.Expected)
}

// NodePanicError carries the recovered panic value and stack trace of a
// node that panicked during Execute.
type NodePanicError struct {
	RunID      string
	NodeID     string
	PanicValue interface{}
	StackTrace string
	Timestamp  time.Time
}

func (e *NodePanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.PanicValue)
}

func NewNodePanicError(runID, nodeID string, panicValue interface{}) *NodePanicError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	return &NodePanicError{
		RunID:      runID,
		NodeID:     nodeID,
		PanicValue: panicValue,
		StackTrace: string(buf[:n]),
		Timestamp:  time.Now(),
	}
}
