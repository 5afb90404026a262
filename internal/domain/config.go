package domain

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logger *slog.Logger `json:"-" yaml:"-"`

	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	History HistoryConfig `json:"history" yaml:"history"`
}

type EngineConfig struct {
	// MaxConcurrentTasks bounds how many nodes of one group may execute
	// at the same instant.
	MaxConcurrentTasks   int           `json:"max_concurrent_tasks" yaml:"max_concurrent_tasks"`
	NodeExecutionTimeout time.Duration `json:"node_execution_timeout" yaml:"node_execution_timeout"`
	RetryAttempts        int           `json:"retry_attempts" yaml:"retry_attempts"`
	RetryBackoff         time.Duration `json:"retry_backoff" yaml:"retry_backoff"`
	MaxMemoryMB          int           `json:"max_memory_mb" yaml:"max_memory_mb"`

	// DefaultNodeCost is assumed for node types that declare no resource
	// estimate; SerialCostThreshold is the group cost above which the plan
	// builder falls back to serial dispatch.
	DefaultNodeCost     float64 `json:"default_node_cost" yaml:"default_node_cost"`
	SerialCostThreshold float64 `json:"serial_cost_threshold" yaml:"serial_cost_threshold"`
}

// UnmarshalYAML accepts duration fields as Go duration strings
// ("30s", "250ms"); yaml.v3 has no native time.Duration decoding.
func (c *EngineConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawEngineConfig struct {
		MaxConcurrentTasks   *int     `yaml:"max_concurrent_tasks"`
		NodeExecutionTimeout string   `yaml:"node_execution_timeout"`
		RetryAttempts        *int     `yaml:"retry_attempts"`
		RetryBackoff         string   `yaml:"retry_backoff"`
		MaxMemoryMB          *int     `yaml:"max_memory_mb"`
		DefaultNodeCost      *float64 `yaml:"default_node_cost"`
		SerialCostThreshold  *float64 `yaml:"serial_cost_threshold"`
	}

	var raw rawEngineConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.MaxConcurrentTasks != nil {
		c.MaxConcurrentTasks = *raw.MaxConcurrentTasks
	}
	if raw.RetryAttempts != nil {
		c.RetryAttempts = *raw.RetryAttempts
	}
	if raw.MaxMemoryMB != nil {
		c.MaxMemoryMB = *raw.MaxMemoryMB
	}
	if raw.DefaultNodeCost != nil {
		c.DefaultNodeCost = *raw.DefaultNodeCost
	}
	if raw.SerialCostThreshold != nil {
		c.SerialCostThreshold = *raw.SerialCostThreshold
	}

	if raw.NodeExecutionTimeout != "" {
		d, err := time.ParseDuration(raw.NodeExecutionTimeout)
		if err != nil {
			return fmt.Errorf("node_execution_timeout: %w", err)
		}
		c.NodeExecutionTimeout = d
	}
	if raw.RetryBackoff != "" {
		d, err := time.ParseDuration(raw.RetryBackoff)
		if err != nil {
			return fmt.Errorf("retry_backoff: %w", err)
		}
		c.RetryBackoff = d
	}

	return nil
}

type HistoryConfig struct {
	// MaxRecords caps the in-memory execution history; oldest records are
	// dropped first. Durable history is an external collaborator's job.
	MaxRecords int `json:"max_records" yaml:"max_records"`
}

func (c *Config) Validate() error {
	if c.Engine.MaxConcurrentTasks < 1 {
		return ErrInvalidConfig
	}
	if c.Engine.RetryAttempts < 0 || c.Engine.RetryBackoff < 0 {
		return ErrInvalidConfig
	}
	if c.Engine.NodeExecutionTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}
