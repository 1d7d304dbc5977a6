// Package report renders one pipeline run as a structured artifact: JSON
// for machines, markdown for humans.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"metis/internal/decompose"
	"metis/internal/pipeline"
	"metis/internal/solve"
	"metis/internal/synth"
	"metis/internal/verify"
)

// Status of one sub-problem within the run.
const (
	StatusSolved   = "/solved"
	StatusUnsolved = "/unsolved"
)

// SubProblemStatus is one decomposition node plus its solve status.
type SubProblemStatus struct {
	ID               string               `json:"id"`
	Description      string               `json:"description"`
	DependsOn        []string             `json:"depends_on,omitempty"`
	Complexity       decompose.Complexity `json:"complexity,omitempty"`
	SuccessCriterion string               `json:"success_criterion"`
	Status           string               `json:"status"`
}

// RunReport is the whole-run artifact. It round-trips through JSON without
// loss, so a stored report can be reloaded and re-rendered.
type RunReport struct {
	RunID        string                     `json:"run_id"`
	State        pipeline.State             `json:"state"`
	GeneratedAt  time.Time                  `json:"generated_at"`
	Problem      decompose.Problem          `json:"problem"`
	PlanID       string                     `json:"plan_id,omitempty"`
	Complexity   decompose.Complexity       `json:"complexity,omitempty"`
	SubProblems  []SubProblemStatus         `json:"sub_problems,omitempty"`
	Results      []solve.SubResult          `json:"results,omitempty"`
	Synthesis    *synth.SynthesisReport     `json:"synthesis,omitempty"`
	Verification *verify.VerificationReport `json:"verification,omitempty"`
	Iterations   []pipeline.IterationRecord `json:"iterations,omitempty"`
}

// FromRun snapshots a run into a report.
func FromRun(run *pipeline.Run) *RunReport {
	r := &RunReport{
		RunID:        run.ID,
		State:        run.State,
		GeneratedAt:  time.Now().UTC(),
		Problem:      run.Problem,
		Synthesis:    run.Synthesis,
		Verification: run.Verification,
		Iterations:   run.Iterations,
	}

	if dec := run.Decomposition; dec != nil {
		r.PlanID = dec.PlanID
		r.Complexity = dec.Complexity
		for _, sub := range dec.SubProblems {
			status := StatusUnsolved
			if _, ok := run.Result(sub.ID); ok {
				status = StatusSolved
			}
			r.SubProblems = append(r.SubProblems, SubProblemStatus{
				ID:               sub.ID,
				Description:      sub.Description,
				DependsOn:        sub.DependsOn,
				Complexity:       sub.Complexity,
				SuccessCriterion: sub.SuccessCriterion,
				Status:           status,
			})
		}
	}

	for _, res := range run.Results() {
		r.Results = append(r.Results, *res)
	}
	return r
}

// JSON serializes the report.
func (r *RunReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Parse loads a report serialized by JSON.
func Parse(data []byte) (*RunReport, error) {
	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse run report: %w", err)
	}
	return &r, nil
}

// Markdown renders the report for humans. Stable section order so diffs
// between iterations of the same run stay readable.
func (r *RunReport) Markdown() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Run %s\n\n", r.RunID)
	fmt.Fprintf(&sb, "- **State:** %s\n", r.State)
	fmt.Fprintf(&sb, "- **Generated:** %s\n", r.GeneratedAt.Format(time.RFC3339))
	if r.Complexity != "" {
		fmt.Fprintf(&sb, "- **Complexity:** %s\n", r.Complexity)
	}

	fmt.Fprintf(&sb, "\n## Problem\n\n%s\n", r.Problem.Statement)
	if len(r.Problem.Constraints) > 0 {
		sb.WriteString("\n**Constraints:**\n\n")
		for _, c := range r.Problem.Constraints {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}
	if len(r.Problem.SuccessCriteria) > 0 {
		sb.WriteString("\n**Success criteria:**\n\n")
		for _, c := range r.Problem.SuccessCriteria {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}

	if len(r.SubProblems) > 0 {
		fmt.Fprintf(&sb, "\n## Plan %s\n\n", r.PlanID)
		sb.WriteString("| ID | Description | Depends on | Complexity | Status |\n")
		sb.WriteString("|----|-------------|------------|------------|--------|\n")
		for _, sub := range r.SubProblems {
			deps := "-"
			if len(sub.DependsOn) > 0 {
				deps = strings.Join(sub.DependsOn, ", ")
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				sub.ID, sub.Description, deps, sub.Complexity, sub.Status)
		}
	}

	if len(r.Results) > 0 {
		sb.WriteString("\n## Results\n\n")
		sb.WriteString("| Sub-problem | Confidence | Result |\n")
		sb.WriteString("|-------------|------------|--------|\n")
		for _, res := range r.Results {
			fmt.Fprintf(&sb, "| %s | %.2f | %s |\n",
				res.SubProblemID, res.Confidence, oneLine(res.Result))
		}
	}

	if s := r.Synthesis; s != nil {
		sb.WriteString("\n## Synthesis\n\n")
		fmt.Fprintf(&sb, "- **Aggregate confidence:** %.3f\n", s.Confidence)
		fmt.Fprintf(&sb, "- **Agreements:** %d\n", len(s.Agreements))
		fmt.Fprintf(&sb, "- **Contradictions:** %d (%d unresolved)\n", len(s.Contradictions), s.Unresolved())
		for _, c := range s.Contradictions {
			fmt.Fprintf(&sb, "  - %s vs %s: %s (%s)\n", c.LeftID, c.RightID, c.Strategy, c.Rationale)
		}
		if len(s.Gaps) > 0 {
			sb.WriteString("- **Gaps:**\n")
			for _, g := range s.Gaps {
				fmt.Fprintf(&sb, "  - %s\n", g)
			}
		}
		fmt.Fprintf(&sb, "\n### Unified output\n\n%s\n", s.Unified)
	}

	if v := r.Verification; v != nil {
		sb.WriteString("\n## Verification\n\n")
		sb.WriteString("| Tier | Outcome |\n|------|--------|\n")
		for _, tier := range v.Tiers {
			fmt.Fprintf(&sb, "| %s | %s |\n", tier.Tier, tier.Outcome)
		}
		fmt.Fprintf(&sb, "\n- **Confidence:** %.3f\n", v.Confidence)
		fmt.Fprintf(&sb, "- **Passed:** %v\n", v.Passed)
		if len(v.BlockingIssues) > 0 {
			sb.WriteString("- **Blocking issues:**\n")
			for _, issue := range v.BlockingIssues {
				fmt.Fprintf(&sb, "  - %s\n", issue)
			}
		}
	}

	if len(r.Iterations) > 0 {
		sb.WriteString("\n## Iterations\n\n")
		sb.WriteString("| # | Passed | Confidence | Feedback applied |\n")
		sb.WriteString("|---|--------|------------|------------------|\n")
		for _, it := range r.Iterations {
			fmt.Fprintf(&sb, "| %d | %v | %.3f | %d |\n",
				it.Index, it.Passed, it.Confidence, len(it.Feedback))
		}
	}

	return sb.String()
}

// oneLine flattens a result for table cells.
func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}
