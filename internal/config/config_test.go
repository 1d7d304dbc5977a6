package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
name: metis
engine:
  provider: gemini
  model: gemini-2.0-flash
limits:
  max_iterations: 3
  max_recursion_depth: 2
  max_concurrent_solves: 8
  solve_timeout: 2m
distill:
  threshold: 2
synthesis:
  discount_base: 0.8
verification:
  full_audit: true
memory:
  enabled: true
  database_path: .metis/lessons.db
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metis.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Limits.MaxIterations != 3 {
		t.Errorf("max_iterations = %d, want 3", cfg.Limits.MaxIterations)
	}
	if cfg.Limits.MaxRecursionDepth != 2 {
		t.Errorf("max_recursion_depth = %d, want 2", cfg.Limits.MaxRecursionDepth)
	}
	if cfg.Synthesis.DiscountBase != 0.8 {
		t.Errorf("discount_base = %v, want 0.8", cfg.Synthesis.DiscountBase)
	}
	if !cfg.Verification.FullAudit {
		t.Error("full_audit not loaded")
	}
	if got := cfg.Limits.StageTimeout("solve"); got != 2*time.Minute {
		t.Errorf("solve timeout = %v, want 2m", got)
	}
	if got := cfg.Limits.StageTimeout("verify"); got != 0 {
		t.Errorf("unset verify timeout = %v, want 0", got)
	}
	// Optional settings default; required ones never do.
	if cfg.Synthesis.OverlapThreshold == 0 {
		t.Error("overlap_threshold default not applied")
	}
}

// The hard bounds are required configuration: no default is invented.
func TestLoad_RequiredLimits(t *testing.T) {
	tests := []struct {
		name   string
		drop   string
		errSub string
	}{
		{"missing max_iterations", "max_iterations: 3", "max_iterations"},
		{"missing max_recursion_depth", "max_recursion_depth: 2", "max_recursion_depth"},
		{"missing discount_base", "discount_base: 0.8", "discount_base"},
	}
	for _, tt := range tests {
		broken := strings.Replace(validYAML, tt.drop, "", 1)
		_, err := Load(writeConfig(t, broken))
		if err == nil {
			t.Errorf("%s: config accepted", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.errSub) {
			t.Errorf("%s: error %q does not name %q", tt.name, err, tt.errSub)
		}
	}
}

func TestLoad_DiscountBaseBounds(t *testing.T) {
	for _, bad := range []string{"discount_base: 0", "discount_base: 1", "discount_base: 1.5"} {
		broken := strings.Replace(validYAML, "discount_base: 0.8", bad, 1)
		if _, err := Load(writeConfig(t, broken)); err == nil {
			t.Errorf("%q accepted", bad)
		}
	}
}

func TestLoad_InvalidTimeout(t *testing.T) {
	broken := strings.Replace(validYAML, "solve_timeout: 2m", "solve_timeout: soon", 1)
	if _, err := Load(writeConfig(t, broken)); err == nil {
		t.Error("malformed duration accepted")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestLoad_ThresholdBounds(t *testing.T) {
	broken := strings.Replace(validYAML, "threshold: 2", "threshold: 7", 1)
	if _, err := Load(writeConfig(t, broken)); err == nil {
		t.Error("out-of-scale distill threshold accepted")
	}
}

// threshold: 0 means "keep everything" and must survive loading; only an
// omitted key falls back to the default.
func TestLoad_ThresholdZeroIsNotDefaulted(t *testing.T) {
	zeroed := strings.Replace(validYAML, "threshold: 2", "threshold: 0", 1)
	cfg, err := Load(writeConfig(t, zeroed))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.Distill.ThresholdValue(); got != 0 {
		t.Errorf("explicit threshold 0 loaded as %d", got)
	}

	omitted := strings.Replace(validYAML, "threshold: 2", "", 1)
	cfg, err = Load(writeConfig(t, omitted))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.Distill.ThresholdValue(); got != 2 {
		t.Errorf("omitted threshold = %d, want default 2", got)
	}
}
