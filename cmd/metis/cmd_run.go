package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"metis/internal/decompose"
	"metis/internal/distill"
	"metis/internal/memory"
	"metis/internal/pipeline"
	"metis/internal/report"
)

var (
	runCorpusDir   string
	runCriteria    []string
	runConstraints []string
	runOutPath     string
)

var runCmd = &cobra.Command{
	Use:   "run [problem statement]",
	Short: "Run the full pipeline on a problem",
	Long: `Runs one problem through the whole pipeline. The statement is
decomposed into a dependency DAG of sub-problems, independent ones are
solved concurrently, results are synthesized, and the unified output is
verified against the success criteria. Failed verification feeds back
into another decomposition, up to limits.max_iterations.

Example:
  metis run "Design a rollout plan" \
    --criterion "plan must cover rollback" \
    --corpus ./docs`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runCorpusDir, "corpus", "", "Directory of context documents to distill")
	runCmd.Flags().StringArrayVar(&runCriteria, "criterion", nil, "Success criterion (repeatable)")
	runCmd.Flags().StringArrayVar(&runConstraints, "constraint", nil, "Constraint (repeatable)")
	runCmd.Flags().StringVarP(&runOutPath, "out", "o", "", "Write the run report JSON to this path")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal, cancelling run")
		cancel()
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}

	problem := decompose.Problem{
		Statement:       strings.Join(args, " "),
		Constraints:     runConstraints,
		SuccessCriteria: runCriteria,
	}

	var corpus []distill.Chunk
	if runCorpusDir != "" {
		corpus, err = distill.LoadCorpusDir(runCorpusDir, cfg.Distill.MaxChunkBytes)
		if err != nil {
			return fmt.Errorf("failed to load corpus: %w", err)
		}
		logger.Info("Loaded corpus", zap.Int("chunks", len(corpus)))
	}

	opts := []pipeline.PipelineOption{}
	if cfg.Memory.Enabled {
		store, serr := memory.NewLessonStore(cfg.Memory.DatabasePath)
		if serr != nil {
			logger.Warn("Lesson store unavailable", zap.Error(serr))
		} else {
			defer store.Close()
			opts = append(opts, pipeline.WithLessonSink(store))
		}
	}

	p, err := pipeline.New(cfg, eng, opts...)
	if err != nil {
		return err
	}

	run, runErr := p.Execute(ctx, problem, corpus)

	rep := report.FromRun(run)
	if runOutPath != "" {
		if werr := writeReport(rep, runOutPath); werr != nil {
			return werr
		}
	}
	printSummary(rep)

	if runErr != nil {
		var stageErr *pipeline.StageError
		if errors.As(runErr, &stageErr) {
			return fmt.Errorf("run %s failed in stage %s: %w", run.ID, stageErr.Stage, stageErr.Err)
		}
		return runErr
	}
	return nil
}

func writeReport(rep *report.RunReport, path string) error {
	data, err := rep.JSON()
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// printSummary prints a one-screen outcome of the run.
func printSummary(rep *report.RunReport) {
	fmt.Printf("\n%s  %s\n", rep.RunID, dimStyle.Render(string(rep.State)))
	fmt.Printf("  sub-problems: %d  results: %d  iterations: %d\n",
		len(rep.SubProblems), len(rep.Results), len(rep.Iterations))

	if v := rep.Verification; v != nil {
		verdict := failStyle.Render("FAILED")
		if v.Passed {
			verdict = passStyle.Render("PASSED")
		}
		fmt.Printf("  verification: %s (confidence %.3f)\n", verdict, v.Confidence)
		for _, issue := range v.BlockingIssues {
			fmt.Printf("    %s\n", dimStyle.Render("- "+issue))
		}
	}
	if s := rep.Synthesis; s != nil && s.Unified != "" {
		fmt.Printf("\n%s\n", s.Unified)
	}
}
