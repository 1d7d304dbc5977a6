package config

import (
	"fmt"
	"time"
)

// LimitsConfig enforces the hard bounds of a pipeline run.
//
// MaxIterations and MaxRecursionDepth are required: the workflow the
// pipeline encodes specifies no default for either, so a zero value is a
// configuration error rather than "unlimited".
type LimitsConfig struct {
	MaxIterations       int `yaml:"max_iterations" json:"max_iterations"`               // decompose->verify loops per run
	MaxRecursionDepth   int `yaml:"max_recursion_depth" json:"max_recursion_depth"`     // nested pipelines per solve chain
	MaxConcurrentSolves int `yaml:"max_concurrent_solves" json:"max_concurrent_solves"` // parallel independent solves

	// Optional per-stage timeouts, parsed as Go durations. Empty = none.
	DistillTimeout   string `yaml:"distill_timeout" json:"distill_timeout"`
	DecomposeTimeout string `yaml:"decompose_timeout" json:"decompose_timeout"`
	SolveTimeout     string `yaml:"solve_timeout" json:"solve_timeout"`
	SynthTimeout     string `yaml:"synth_timeout" json:"synth_timeout"`
	VerifyTimeout    string `yaml:"verify_timeout" json:"verify_timeout"`
}

// ValidateLimits checks that the required bounds are present and sane.
func (c *Config) ValidateLimits() error {
	if c.Limits.MaxIterations < 1 {
		return fmt.Errorf("limits.max_iterations is required and must be >= 1")
	}
	if c.Limits.MaxRecursionDepth < 1 {
		return fmt.Errorf("limits.max_recursion_depth is required and must be >= 1")
	}
	if c.Limits.MaxConcurrentSolves < 1 {
		return fmt.Errorf("limits.max_concurrent_solves must be >= 1")
	}
	for name, raw := range map[string]string{
		"distill_timeout":   c.Limits.DistillTimeout,
		"decompose_timeout": c.Limits.DecomposeTimeout,
		"solve_timeout":     c.Limits.SolveTimeout,
		"synth_timeout":     c.Limits.SynthTimeout,
		"verify_timeout":    c.Limits.VerifyTimeout,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("limits.%s: invalid duration %q", name, raw)
		}
	}
	return nil
}

// StageTimeout returns the parsed timeout for a named stage. Zero means none.
// Validate has already rejected malformed durations, so parse errors here
// fold to zero.
func (l LimitsConfig) StageTimeout(stage string) time.Duration {
	var raw string
	switch stage {
	case "distill":
		raw = l.DistillTimeout
	case "decompose":
		raw = l.DecomposeTimeout
	case "solve":
		raw = l.SolveTimeout
	case "synth":
		raw = l.SynthTimeout
	case "verify":
		raw = l.VerifyTimeout
	}
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
