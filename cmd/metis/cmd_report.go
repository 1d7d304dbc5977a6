package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"metis/internal/memory"
	"metis/internal/report"
)

var reportRaw bool

var reportCmd = &cobra.Command{
	Use:   "report [report.json]",
	Short: "Render a stored run report",
	Long: `Loads a run report written by 'metis run --out' and renders it as
markdown in the terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: renderReport,
}

var lessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "List lessons learned from past runs",
	RunE:  listLessons,
}

var lessonsLimit int

func init() {
	reportCmd.Flags().BoolVar(&reportRaw, "raw", false, "Print raw markdown without terminal styling")
	lessonsCmd.Flags().IntVarP(&lessonsLimit, "limit", "n", 10, "How many lessons to show")
}

func renderReport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	rep, err := report.Parse(data)
	if err != nil {
		return err
	}

	md := rep.Markdown()
	if reportRaw {
		fmt.Println(md)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Println(md)
		return nil
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Println(md)
		return nil
	}
	fmt.Print(out)
	return nil
}

func listLessons(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Memory.Enabled {
		return fmt.Errorf("memory is disabled in %s", configPath)
	}

	store, err := memory.NewLessonStore(cfg.Memory.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	lessons, err := store.Recent(context.Background(), lessonsLimit)
	if err != nil {
		return err
	}
	if len(lessons) == 0 {
		fmt.Println("no lessons recorded yet")
		return nil
	}

	for _, l := range lessons {
		verdict := "failed"
		if l.Passed {
			verdict = "passed"
		}
		fmt.Printf("%s  %s  %s (%d iterations, confidence %.2f)\n  %s\n",
			l.CreatedAt.Format("2006-01-02 15:04"), l.RunID, verdict,
			l.Iterations, l.Confidence, l.Problem)
	}
	return nil
}
