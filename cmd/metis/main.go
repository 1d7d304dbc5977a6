package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"metis/internal/config"
	"metis/internal/engine"
)

var (
	// Global flags
	verbose    bool
	configPath string
	apiKey     string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "metis",
	Short: "metis - iterative problem-decomposition pipeline",
	Long: `metis runs problems through a Distill -> Decompose -> Solve ->
Synthesize -> Verify pipeline.

Independent sub-problems are solved concurrently over a dependency DAG,
high-complexity sub-problems recurse into nested pipelines, and failed
verification loops back to decomposition with feedback until the
configured iteration limit.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".metis/metis.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Engine API key (or set METIS_API_KEY env)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Whole-run timeout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(decomposeCmd)
	rootCmd.AddCommand(distillCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(lessonsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the config file, folding in the API key
// from the flag or environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		cfg.Engine.APIKey = apiKey
	}
	if cfg.Engine.APIKey == "" {
		cfg.Engine.APIKey = os.Getenv("METIS_API_KEY")
	}
	return cfg, nil
}

// buildEngine selects the reasoning engine from configuration.
func buildEngine(ctx context.Context, cfg *config.Config) (engine.Engine, error) {
	switch cfg.Engine.Provider {
	case "gemini":
		return engine.NewGeminiEngine(ctx, cfg.Engine.APIKey, cfg.Engine.Model)
	case "openai-compatible":
		engineTimeout, err := cfg.EngineTimeout()
		if err != nil {
			return nil, err
		}
		return engine.NewChatEngine(engine.ChatConfig{
			APIKey:  cfg.Engine.APIKey,
			BaseURL: cfg.Engine.BaseURL,
			Model:   cfg.Engine.Model,
			Timeout: engineTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown engine provider %q", cfg.Engine.Provider)
	}
}
