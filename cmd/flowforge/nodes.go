package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowforge-io/flowforge"
)

// demoNodes returns the small built-in node set the CLI registers so
// definitions can be validated and exercised without an embedding
// application.
func demoNodes() []flowforge.NodePlugin {
	return []flowforge.NodePlugin{
		&echoNode{},
		&uppercaseNode{},
		&concatNode{},
		&sleepNode{},
		&printNode{},
	}
}

// echoNode is a source: it emits its message parameter on the text port.
type echoNode struct{}

func (n *echoNode) Info() flowforge.NodeInfo {
	return flowforge.NodeInfo{
		Type:        "echo",
		Name:        "Echo",
		Category:    "sources",
		Description: "emits a configured text value",
		Outputs: []flowforge.PortInfo{
			{Name: "text", Type: flowforge.PortTypeData, DataType: flowforge.DataTypeText},
		},
		Parameters: []flowforge.ParameterInfo{
			{Name: "message", Type: flowforge.ParameterTypeText, Required: true},
		},
	}
}

func (n *echoNode) ValidateInputs(map[string]interface{}) error { return nil }

func (n *echoNode) Execute(_ context.Context, req flowforge.ExecuteRequest) (*flowforge.ExecutionResult, error) {
	message := fmt.Sprintf("%v", req.Parameters["message"])
	return flowforge.NewSuccessResult("", map[string]interface{}{"text": message}), nil
}

type uppercaseNode struct{}

func (n *uppercaseNode) Info() flowforge.NodeInfo {
	return flowforge.NodeInfo{
		Type:        "uppercase",
		Name:        "Uppercase",
		Category:    "transforms",
		Description: "uppercases incoming text",
		Inputs: []flowforge.PortInfo{
			{Name: "text", Type: flowforge.PortTypeData, DataType: flowforge.DataTypeText, Required: true},
		},
		Outputs: []flowforge.PortInfo{
			{Name: "text", Type: flowforge.PortTypeData, DataType: flowforge.DataTypeText},
		},
	}
}

func (n *uppercaseNode) ValidateInputs(inputs map[string]interface{}) error {
	if _, ok := inputs["text"].(string); !ok {
		return fmt.Errorf("input text must be a string, got %T", inputs["text"])
	}
	return nil
}

func (n *uppercaseNode) Execute(_ context.Context, req flowforge.ExecuteRequest) (*flowforge.ExecutionResult, error) {
	text := req.Inputs["text"].(string)
	return flowforge.NewSuccessResult("", map[string]interface{}{"text": strings.ToUpper(text)}), nil
}

// concatNode joins every value arriving on its multi-connection input.
type concatNode struct{}

func (n *concatNode) Info() flowforge.NodeInfo {
	return flowforge.NodeInfo{
		Type:        "concat",
		Name:        "Concatenate",
		Category:    "transforms",
		Description: "joins text from multiple upstream nodes",
		Inputs: []flowforge.PortInfo{
			{Name: "parts", Type: flowforge.PortTypeData, DataType: flowforge.DataTypeText, Required: true, AllowMultiple: true},
		},
		Outputs: []flowforge.PortInfo{
			{Name: "text", Type: flowforge.PortTypeData, DataType: flowforge.DataTypeText},
		},
		Parameters: []flowforge.ParameterInfo{
			{Name: "separator", Type: flowforge.ParameterTypeText, Default: " "},
		},
	}
}

func (n *concatNode) ValidateInputs(inputs map[string]interface{}) error {
	if inputs["parts"] == nil {
		return fmt.Errorf("input parts is required")
	}
	return nil
}

func (n *concatNode) Execute(_ context.Context, req flowforge.ExecuteRequest) (*flowforge.ExecutionResult, error) {
	separator := fmt.Sprintf("%v", req.Parameters["separator"])

	var parts []string
	switch v := req.Inputs["parts"].(type) {
	case []interface{}:
		for _, item := range v {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
	default:
		parts = append(parts, fmt.Sprintf("%v", v))
	}

	return flowforge.NewSuccessResult("", map[string]interface{}{"text": strings.Join(parts, separator)}), nil
}

// sleepNode passes text through after a configurable delay; useful for
// observing concurrency, pause and cancellation from the CLI.
type sleepNode struct{}

func (n *sleepNode) Info() flowforge.NodeInfo {
	return flowforge.NodeInfo{
		Type:        "sleep",
		Name:        "Sleep",
		Category:    "utility",
		Description: "delays before passing text through",
		Inputs: []flowforge.PortInfo{
			{Name: "text", Type: flowforge.PortTypeData, DataType: flowforge.DataTypeText, Required: true},
		},
		Outputs: []flowforge.PortInfo{
			{Name: "text", Type: flowforge.PortTypeData, DataType: flowforge.DataTypeText},
		},
		Parameters: []flowforge.ParameterInfo{
			{Name: "seconds", Type: flowforge.ParameterTypeNumber, Default: 1.0},
		},
	}
}

func (n *sleepNode) ValidateInputs(map[string]interface{}) error { return nil }

func (n *sleepNode) Execute(ctx context.Context, req flowforge.ExecuteRequest) (*flowforge.ExecutionResult, error) {
	seconds, _ := req.Parameters["seconds"].(float64)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	}

	return flowforge.NewSuccessResult("", map[string]interface{}{"text": req.Inputs["text"]}), nil
}

// printNode is a sink: it writes incoming text to stdout.
type printNode struct{}

func (n *printNode) Info() flowforge.NodeInfo {
	return flowforge.NodeInfo{
		Type:        "print",
		Name:        "Print",
		Category:    "sinks",
		Description: "writes incoming text to stdout",
		Inputs: []flowforge.PortInfo{
			{Name: "text", Type: flowforge.PortTypeData, DataType: flowforge.DataTypeAny, Required: true},
		},
	}
}

func (n *printNode) ValidateInputs(map[string]interface{}) error { return nil }

func (n *printNode) Execute(_ context.Context, req flowforge.ExecuteRequest) (*flowforge.ExecutionResult, error) {
	fmt.Println(req.Inputs["text"])
	return flowforge.NewSuccessResult("", nil), nil
}
