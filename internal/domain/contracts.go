package domain

import (
	"fmt"
)

// NodeInfo is the metadata a node plugin declares about itself. The parser
// and the data flow service validate definitions against it; the plan
// builder reads the resource estimate from it.
type NodeInfo struct {
	Type        string            `json:"node_type"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Description string            `json:"description,omitempty"`
	Version     string            `json:"version,omitempty"`
	Inputs      []PortInfo        `json:"inputs,omitempty"`
	Outputs     []PortInfo        `json:"outputs,omitempty"`
	Parameters  []ParameterInfo   `json:"parameters,omitempty"`
	Resources   *NodeResourceInfo `json:"resources,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
}

func (i NodeInfo) InputPort(name string) (PortInfo, bool) {
	for _, p := range i.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return PortInfo{}, false
}

func (i NodeInfo) OutputPort(name string) (PortInfo, bool) {
	for _, p := range i.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return PortInfo{}, false
}

// PortInfo describes one input or output port of a node type. Input ports
// accept a single connection unless AllowMultiple is set.
type PortInfo struct {
	Name          string   `json:"name"`
	Type          PortType `json:"port_type"`
	DataType      DataType `json:"data_type"`
	Required      bool     `json:"required"`
	AllowMultiple bool     `json:"allow_multiple,omitempty"`
	Description   string   `json:"description,omitempty"`
}

type PortType string

const (
	PortTypeData    PortType = "data"
	PortTypeControl PortType = "control"
	PortTypeEvent   PortType = "event"
)

type DataType string

const (
	DataTypeTable   DataType = "table"
	DataTypeText    DataType = "text"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeDate    DataType = "date"
	DataTypeFile    DataType = "file"
	DataTypeJSON    DataType = "json"
	DataTypeList    DataType = "list"
	DataTypeMap     DataType = "map"
	DataTypeAny     DataType = "any"
)

// Compatible reports whether a value produced as dt may feed a port
// declared as other. "any" on either side always matches.
func (dt DataType) Compatible(other DataType) bool {
	if dt == DataTypeAny || other == DataTypeAny {
		return true
	}
	return dt == other
}

// ParameterInfo declares one configurable parameter of a node type,
// including the validation rules applied before the node executes.
type ParameterInfo struct {
	Name        string          `json:"name" yaml:"name"`
	Type        ParameterType   `json:"parameter_type" yaml:"parameter_type"`
	Required    bool            `json:"required" yaml:"required"`
	Default     interface{}     `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Choices     []string        `json:"choices,omitempty" yaml:"choices,omitempty"`
	Rules       ValidationRules `json:"validation_rules,omitempty" yaml:"validation_rules,omitempty"`
}

type ParameterType string

const (
	ParameterTypeText    ParameterType = "text"
	ParameterTypeNumber  ParameterType = "number"
	ParameterTypeBoolean ParameterType = "boolean"
	ParameterTypeChoice  ParameterType = "choice"
	ParameterTypeFile    ParameterType = "file"
	ParameterTypeDate    ParameterType = "date"
	ParameterTypeJSON    ParameterType = "json"
)

type ValidationRules struct {
	MinLength *int     `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	MinValue  *float64 `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue  *float64 `json:"max_value,omitempty" yaml:"max_value,omitempty"`
}

// Validate checks a concrete value against the declaration. A nil value is
// rejected only for required parameters.
func (p ParameterInfo) Validate(value interface{}) error {
	if value == nil {
		if p.Required && p.Default == nil {
			return fmt.Errorf("parameter %s is required", p.Name)
		}
		return nil
	}

	switch p.Type {
	case ParameterTypeText, ParameterTypeFile, ParameterTypeDate:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("parameter %s must be a string, got %T", p.Name, value)
		}
	case ParameterTypeNumber:
		if !isNumeric(value) {
			return fmt.Errorf("parameter %s must be a number, got %T", p.Name, value)
		}
	case ParameterTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("parameter %s must be a boolean, got %T", p.Name, value)
		}
	case ParameterTypeChoice:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("parameter %s must be a string choice, got %T", p.Name, value)
		}
		if len(p.Choices) > 0 && !contains(p.Choices, s) {
			return fmt.Errorf("parameter %s: %q is not one of the allowed choices", p.Name, s)
		}
	}

	if p.Rules.MinLength != nil || p.Rules.MaxLength != nil {
		s := fmt.Sprintf("%v", value)
		if p.Rules.MinLength != nil && len(s) < *p.Rules.MinLength {
			return fmt.Errorf("parameter %s must be at least %d characters", p.Name, *p.Rules.MinLength)
		}
		if p.Rules.MaxLength != nil && len(s) > *p.Rules.MaxLength {
			return fmt.Errorf("parameter %s must be at most %d characters", p.Name, *p.Rules.MaxLength)
		}
	}
	if p.Rules.MinValue != nil || p.Rules.MaxValue != nil {
		f, ok := asFloat(value)
		if !ok {
			return fmt.Errorf("parameter %s has numeric bounds but is not numeric", p.Name)
		}
		if p.Rules.MinValue != nil && f < *p.Rules.MinValue {
			return fmt.Errorf("parameter %s must be >= %v", p.Name, *p.Rules.MinValue)
		}
		if p.Rules.MaxValue != nil && f > *p.Rules.MaxValue {
			return fmt.Errorf("parameter %s must be <= %v", p.Name, *p.Rules.MaxValue)
		}
	}

	return nil
}

func isNumeric(v interface{}) bool {
	_, ok := asFloat(v)
	return ok
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
