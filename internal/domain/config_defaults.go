package domain

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

func DefaultConfig() *Config {
	return &Config{
		Engine:  DefaultEngineConfig(),
		History: DefaultHistoryConfig(),
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxConcurrentTasks:   4,
		NodeExecutionTimeout: time.Hour,
		RetryAttempts:        3,
		RetryBackoff:         time.Second,
		MaxMemoryMB:          2048,
		DefaultNodeCost:      1.0,
		SerialCostThreshold:  100.0,
	}
}

func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		MaxRecords: 1000,
	}
}

// LoadConfig reads a YAML config file and fills every unset field from the
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := mergo.Merge(cfg, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
