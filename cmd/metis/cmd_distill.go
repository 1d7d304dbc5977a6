package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"metis/internal/distill"
)

var (
	distillCorpusDir string
	distillWatch     bool
	distillJSON      bool
)

var distillCmd = &cobra.Command{
	Use:   "distill [query]",
	Short: "Distill a corpus directory against a query",
	Long: `Scores every chunk of the corpus against the query and prints the
kept subset plus coverage notes for everything excluded. With --watch the
corpus directory is monitored and distillation re-runs on file changes.

Example:
  metis distill "database schema decisions" --corpus ./docs --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDistill,
}

func init() {
	distillCmd.Flags().StringVar(&distillCorpusDir, "corpus", ".", "Directory of documents to distill")
	distillCmd.Flags().BoolVar(&distillWatch, "watch", false, "Re-run distillation when corpus files change")
	distillCmd.Flags().BoolVar(&distillJSON, "json", false, "Print the distillation as JSON")
}

func runDistill(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	distiller, err := distill.NewDistiller(nil, cfg.Distill.ThresholdValue())
	if err != nil {
		return err
	}

	corpus, err := distill.LoadCorpusDir(distillCorpusDir, cfg.Distill.MaxChunkBytes)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	result, err := distiller.Distill(ctx, corpus, query)
	if err != nil {
		return err
	}
	if err := printDistillation(result); err != nil {
		return err
	}

	if !distillWatch {
		return nil
	}

	watcher, err := distill.NewCorpusWatcher(distillCorpusDir, query, distiller, cfg.Distill.MaxChunkBytes)
	if err != nil {
		return fmt.Errorf("failed to create corpus watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	fmt.Fprintln(os.Stderr, "watching for corpus changes, Ctrl-C to stop")

	for {
		select {
		case <-sigCh:
			return nil
		case refreshed, ok := <-watcher.Results:
			if !ok {
				return nil
			}
			if err := printDistillation(refreshed); err != nil {
				return err
			}
		}
	}
}

func printDistillation(d *distill.Distillation) error {
	if distillJSON {
		return printJSON(d)
	}
	fmt.Printf("kept %d chunks at threshold %d:\n", len(d.Subset), d.Threshold)
	for _, chunk := range d.Subset {
		fmt.Printf("  + %s\n", chunk.ID)
	}
	for _, note := range d.Coverage {
		fmt.Printf("  - %s (score %d): %s\n", note.ChunkID, note.Score, note.Reason)
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
