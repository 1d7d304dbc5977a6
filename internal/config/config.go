// Package config loads and validates metis configuration.
//
// The pipeline deliberately ships without defaults for its hard bounds:
// the iteration limit, the recursion depth limit, and the synthesis
// confidence discount are required inputs, and Validate rejects a config
// that leaves them unset.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all metis configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Reasoning engine configuration
	Engine EngineConfig `yaml:"engine"`

	// Hard run bounds (required)
	Limits LimitsConfig `yaml:"limits"`

	// Distillation settings
	Distill DistillConfig `yaml:"distill"`

	// Synthesis settings
	Synthesis SynthesisConfig `yaml:"synthesis"`

	// Verification settings
	Verification VerificationConfig `yaml:"verification"`

	// Lessons store
	Memory MemoryConfig `yaml:"memory"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig configures the reasoning engine client.
type EngineConfig struct {
	Provider string `yaml:"provider"` // gemini, openai-compatible, scripted
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// DistillConfig configures corpus distillation.
type DistillConfig struct {
	// Minimum ordinal relevance score (0-3) a chunk needs to enter the subset.
	// A pointer distinguishes an explicit 0 (keep everything) from an omitted
	// key, which defaults to 2.
	Threshold *int `yaml:"threshold"`
	// Chunks larger than this are truncated before scoring (0 = no cap).
	MaxChunkBytes int `yaml:"max_chunk_bytes"`
}

// ThresholdValue returns the configured distillation threshold, or 2 when
// the key was omitted.
func (d DistillConfig) ThresholdValue() int {
	if d.Threshold == nil {
		return 2
	}
	return *d.Threshold
}

// SynthesisConfig configures result synthesis.
type SynthesisConfig struct {
	// DiscountBase is the per-unresolved-contradiction confidence multiplier,
	// in (0,1). Required: there is no prescribed default.
	DiscountBase float64 `yaml:"discount_base"`
	// OverlapThreshold is the token-overlap ratio above which two results are
	// considered to cover the same ground.
	OverlapThreshold float64 `yaml:"overlap_threshold"`
}

// VerificationConfig configures the verification cascade.
type VerificationConfig struct {
	// FullAudit runs all three tiers even after a failure instead of
	// fail-fast short-circuiting.
	FullAudit bool `yaml:"full_audit"`
}

// MemoryConfig configures the lessons-learned store.
type MemoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
	Level      string          `yaml:"level" json:"level"`
}

// Load reads a Config from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyOptionalDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyOptionalDefaults fills in the settings that DO have sensible defaults.
// The required limits are never defaulted here.
func (c *Config) applyOptionalDefaults() {
	if c.Name == "" {
		c.Name = "metis"
	}
	if c.Limits.MaxConcurrentSolves == 0 {
		c.Limits.MaxConcurrentSolves = 4
	}
	if c.Synthesis.OverlapThreshold == 0 {
		c.Synthesis.OverlapThreshold = 0.35
	}
	if c.Memory.Enabled && c.Memory.DatabasePath == "" {
		c.Memory.DatabasePath = ".metis/lessons.db"
	}
}

// Validate checks the whole config.
func (c *Config) Validate() error {
	if err := c.ValidateLimits(); err != nil {
		return err
	}
	if t := c.Distill.ThresholdValue(); t < 0 || t > 3 {
		return fmt.Errorf("distill.threshold must be in [0,3], got %d", t)
	}
	if c.Synthesis.DiscountBase <= 0 || c.Synthesis.DiscountBase >= 1 {
		return fmt.Errorf("synthesis.discount_base is required and must be in (0,1), got %v", c.Synthesis.DiscountBase)
	}
	if c.Synthesis.OverlapThreshold <= 0 || c.Synthesis.OverlapThreshold > 1 {
		return fmt.Errorf("synthesis.overlap_threshold must be in (0,1], got %v", c.Synthesis.OverlapThreshold)
	}
	return nil
}

// EngineTimeout parses the engine call timeout. Zero means no timeout.
func (c *Config) EngineTimeout() (time.Duration, error) {
	if c.Engine.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Engine.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid engine.timeout %q: %w", c.Engine.Timeout, err)
	}
	return d, nil
}
