package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"metis/internal/decompose"
)

var (
	decomposeCriteria []string
	decomposeJSON     bool
)

var decomposeCmd = &cobra.Command{
	Use:   "decompose [problem statement]",
	Short: "Decompose a problem without solving it",
	Long: `Runs only the decomposition stage and prints the resulting
dependency DAG, including any audit issues the plan kernel found.

Example:
  metis decompose "Migrate the billing service" --criterion "no downtime"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecompose,
}

func init() {
	decomposeCmd.Flags().StringArrayVar(&decomposeCriteria, "criterion", nil, "Success criterion (repeatable)")
	decomposeCmd.Flags().BoolVar(&decomposeJSON, "json", false, "Print the decomposition as JSON")
}

func runDecompose(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

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
		SuccessCriteria: decomposeCriteria,
	}

	dec, err := decompose.NewDecomposer(eng).Decompose(ctx, problem, nil)
	if err != nil {
		return err
	}

	if decomposeJSON {
		return printJSON(dec)
	}

	fmt.Printf("Plan %s (%s), %d sub-problems:\n\n", dec.PlanID, dec.Complexity, len(dec.SubProblems))
	for _, id := range dec.Graph.TopoOrder() {
		sub, _ := dec.SubProblem(id)
		deps := "-"
		if len(sub.DependsOn) > 0 {
			deps = strings.Join(sub.DependsOn, ", ")
		}
		fmt.Printf("  %s [%s] deps: %s\n    %s\n    done when: %s\n",
			sub.ID, sub.Complexity, deps, sub.Description, sub.SuccessCriterion)
	}
	for _, issue := range dec.AuditIssues {
		fmt.Printf("  audit: %s on %s\n", issue.IssueType, issue.SubProblemID)
	}
	return nil
}
