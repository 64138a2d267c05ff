package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Processing modes for the dataset builder.
const (
	ModeBase     = "base"
	ModeExtended = "extended"
)

// Default tuning values. These match the parameters the labeling pipeline was
// originally operated with.
const (
	DefaultStopSpeedThreshold = 0.5  // km/h; speed below this counts as stopped
	DefaultMinStopSeconds     = 0.0  // 0 disables the minimum-duration check
	DefaultMaxStopGapSeconds  = 0.0  // 0 disables gap splitting
	DefaultTrainRatio         = 0.8
	DefaultWorkers            = 1
)

// Config represents the tuning parameters for a dataset build. All fields are
// optional pointers so a partial JSON file only overrides what it names; the
// Get* methods provide fallback defaults for everything else.
type Config struct {
	// Stop detection params
	StopSpeedThreshold *float64 `json:"stop_speed_threshold,omitempty"`
	MinStopSeconds     *float64 `json:"min_stop_seconds,omitempty"`
	RequireZeroSpeed   *bool    `json:"require_zero_speed,omitempty"`
	MaxStopGapSeconds  *float64 `json:"max_stop_gap_seconds,omitempty"`

	// Labeling params
	StopGateBase     *bool `json:"stop_gate_base,omitempty"`     // gate labels in base mode
	StopGateExtended *bool `json:"stop_gate_extended,omitempty"` // gate labels in extended mode
	Strict           *bool `json:"strict,omitempty"`             // duplicate ground-truth keys are fatal

	// Output params
	TrainRatio *float64 `json:"train_ratio,omitempty"`

	// Execution params
	Workers *int `json:"workers,omitempty"`
}

// Empty returns a Config with all fields unset. Use Load to read actual
// values from a tuning file.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. Fields omitted from the file retain
// their defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks value ranges for all set fields.
func (c *Config) Validate() error {
	if c.StopSpeedThreshold != nil && *c.StopSpeedThreshold < 0 {
		return fmt.Errorf("stop_speed_threshold must be >= 0, got %v", *c.StopSpeedThreshold)
	}
	if c.MinStopSeconds != nil && *c.MinStopSeconds < 0 {
		return fmt.Errorf("min_stop_seconds must be >= 0, got %v", *c.MinStopSeconds)
	}
	if c.MaxStopGapSeconds != nil && *c.MaxStopGapSeconds < 0 {
		return fmt.Errorf("max_stop_gap_seconds must be >= 0, got %v", *c.MaxStopGapSeconds)
	}
	if c.TrainRatio != nil && (*c.TrainRatio <= 0 || *c.TrainRatio >= 1) {
		return fmt.Errorf("train_ratio must be in (0, 1), got %v", *c.TrainRatio)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", *c.Workers)
	}
	return nil
}

func (c *Config) GetStopSpeedThreshold() float64 {
	if c.StopSpeedThreshold != nil {
		return *c.StopSpeedThreshold
	}
	return DefaultStopSpeedThreshold
}

func (c *Config) GetMinStopSeconds() float64 {
	if c.MinStopSeconds != nil {
		return *c.MinStopSeconds
	}
	return DefaultMinStopSeconds
}

func (c *Config) GetRequireZeroSpeed() bool {
	if c.RequireZeroSpeed != nil {
		return *c.RequireZeroSpeed
	}
	return false
}

func (c *Config) GetMaxStopGapSeconds() float64 {
	if c.MaxStopGapSeconds != nil {
		return *c.MaxStopGapSeconds
	}
	return DefaultMaxStopGapSeconds
}

// GetStopGate reports whether stop-segment gating applies for the given
// processing mode. The extended pipeline gates by default; the base pipeline
// does not.
func (c *Config) GetStopGate(mode string) bool {
	switch mode {
	case ModeExtended:
		if c.StopGateExtended != nil {
			return *c.StopGateExtended
		}
		return true
	default:
		if c.StopGateBase != nil {
			return *c.StopGateBase
		}
		return false
	}
}

func (c *Config) GetStrict() bool {
	if c.Strict != nil {
		return *c.Strict
	}
	return false
}

func (c *Config) GetTrainRatio() float64 {
	if c.TrainRatio != nil {
		return *c.TrainRatio
	}
	return DefaultTrainRatio
}

func (c *Config) GetWorkers() int {
	if c.Workers != nil {
		return *c.Workers
	}
	return DefaultWorkers
}
